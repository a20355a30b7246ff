package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ghodss/yaml"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/apartresearch/reward-analyzer/internal/sweepfile"
	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/sweep"
)

// Grid output formats.
const (
	outputYAML  = "yaml"
	outputJSON  = "json"
	outputTable = "table"
)

// gridOptions selects the grid a command works on.
type gridOptions struct {
	preset          string
	sweepFile       string
	hyperparameters string
	device          string
}

func (o *gridOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.preset, "preset", sweep.AutoencoderTasks,
		fmt.Sprintf("built-in sweep generation %v", sweep.GenerationNames()))
	flags.StringVar(&o.sweepFile, "sweep-file", "",
		"sweep file (.yaml, .yml, .json or .hcl) describing the grid")
	flags.StringVar(&o.hyperparameters, "hyperparameters", "",
		fmt.Sprintf("base hyperparameter preset %v; defaults to the generation's own", hparams.PresetNames()))
	flags.StringVar(&o.device, "device", "", "device recorded on every experiment")
}

func (o *gridOptions) gridConfig(flags *pflag.FlagSet) (sweep.GridConfig, error) {
	var (
		cfg sweep.GridConfig
		err error
	)
	if o.sweepFile != "" {
		if flags.Changed("preset") || flags.Changed("hyperparameters") {
			return cfg, errors.New("--sweep-file cannot be combined with --preset or --hyperparameters")
		}
		f, err := sweepfile.Load(o.sweepFile)
		if err != nil {
			return cfg, err
		}
		if cfg, err = f.GridConfig(); err != nil {
			return cfg, errors.Wrapf(err, "sweep file %s", o.sweepFile)
		}
	} else {
		var base *hparams.Hyperparameters
		if o.hyperparameters != "" {
			if base, err = hparams.Preset(o.hyperparameters); err != nil {
				return cfg, err
			}
		}
		if cfg, err = sweep.Generation(o.preset, base); err != nil {
			return cfg, err
		}
	}
	if o.device != "" {
		cfg.Device = o.device
	}
	return cfg, nil
}

func (o *gridOptions) grid(flags *pflag.FlagSet) (*sweep.Grid, error) {
	cfg, err := o.gridConfig(flags)
	if err != nil {
		return nil, err
	}
	return sweep.Generate(cfg), nil
}

func newGridCmd() *cobra.Command {
	var (
		opts   gridOptions
		output string
	)
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print the experiments of a sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Applies the configured logging.
			if _, err := initializeConfig(); err != nil {
				return err
			}
			grid, err := opts.grid(cmd.Flags())
			if err != nil {
				return err
			}
			return writeGrid(cmd.OutOrStdout(), grid, output)
		},
	}
	opts.addFlags(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "output format (yaml, json, table)")
	return cmd
}

func writeGrid(w io.Writer, grid *sweep.Grid, format string) error {
	switch format {
	case outputJSON:
		bs, err := json.MarshalIndent(grid, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(bs))
		return err
	case outputYAML:
		bs, err := yaml.Marshal(grid)
		if err != nil {
			return err
		}
		_, err = w.Write(bs)
		return err
	case outputTable:
		table := newTable(w, "model", "variant", "policy", "project", "hyperparameters")
		grid.Each(func(k sweep.Key, e *sweep.Experiment) {
			table.Append([]string{
				k.Model, k.Variant, e.PolicyModelName(), e.ProjectName(), e.Hyperparameters().String(),
			})
		})
		table.Render()
		return nil
	default:
		return errors.Errorf("unknown output format %q (expected %s, %s or %s)",
			format, outputYAML, outputJSON, outputTable)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}
