package prom_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/apartresearch/reward-analyzer/internal/prom"
)

var (
	labels    = []string{"method"}
	histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: prom.Namespace,
		Subsystem: "my_subsystem",
		Name:      "seconds",
		Buckets:   prometheus.DefBuckets,
	}, labels)
	counter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: prom.Namespace,
		Subsystem: "my_subsystem",
		Name:      "errors",
	}, labels)
)

func ExampleTime() {
	defer prom.Time(histogram.WithLabelValues("GET"))()

	// do thing you want to time.
	time.Sleep(time.Millisecond)
	// Output:
}

func ExampleErrCount() {
	var err error
	defer prom.ErrCount(counter.WithLabelValues("GET"), &err)

	// do some stuff that may cause error to be non-nil
	_, err = strconv.Atoi("abc")
	// Output:
}

func TestErrCount(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_errors"})
	run := func(fail bool) (err error) {
		defer prom.ErrCount(c, &err)
		if fail {
			_, err = strconv.Atoi("abc")
		}
		return err
	}
	require.NoError(t, run(false))
	require.Error(t, run(true))
	require.Equal(t, 1.0, testutil.ToFloat64(c))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: prom.Namespace, Name: "things_total"})
	reg.MustRegister(c)
	c.Add(3)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, prom.WriteTextfile(path, reg))
	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(bs), "reward_analyzer_things_total 3")
}
