package storage

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/apartresearch/reward-analyzer/pkg/check"
)

// Backend names.
const (
	SharedFS = "shared_fs"
	S3       = "s3"
	GCS      = "gcs"
)

// SharedFSConfig stores artifacts on a filesystem shared by every worker.
type SharedFSConfig struct {
	HostPath    string `json:"host_path"`
	StoragePath string `json:"storage_path,omitempty"`
}

// Validate implements the check.Validatable interface.
func (c SharedFSConfig) Validate() []error {
	return []error{check.NotEmpty(c.HostPath, "shared_fs host_path is required")}
}

// S3Config stores artifacts in an S3 bucket. Credentials fall back to the default AWS chain.
type S3Config struct {
	Bucket      string  `json:"bucket"`
	Prefix      string  `json:"prefix,omitempty"`
	Region      string  `json:"region,omitempty"`
	EndpointURL string  `json:"endpoint_url,omitempty"`
	AccessKey   *string `json:"access_key,omitempty"`
	SecretKey   *string `json:"secret_key,omitempty"`
}

// Validate implements the check.Validatable interface.
func (c S3Config) Validate() []error {
	return []error{
		check.NotEmpty(c.Bucket, "s3 bucket is required"),
		check.True((c.AccessKey == nil) == (c.SecretKey == nil),
			"s3 access_key and secret_key must be set together"),
	}
}

// GCSConfig stores artifacts in a GCS bucket.
type GCSConfig struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	// Endpoint points at a GCS-compatible server, such as an emulator. It disables authentication.
	Endpoint string `json:"endpoint,omitempty"`
}

// Validate implements the check.Validatable interface.
func (c GCSConfig) Validate() []error {
	return []error{check.NotEmpty(c.Bucket, "gcs bucket is required")}
}

// Config is a union of the storage backends, tagged by "type" in JSON.
type Config struct {
	SharedFS *SharedFSConfig `json:"-"`
	S3       *S3Config       `json:"-"`
	GCS      *GCSConfig      `json:"-"`
}

// DefaultConfig stores artifacts under ./artifacts.
func DefaultConfig() Config {
	return Config{SharedFS: &SharedFSConfig{HostPath: "artifacts"}}
}

// Type returns the name of the configured backend.
func (c Config) Type() string {
	switch {
	case c.SharedFS != nil:
		return SharedFS
	case c.S3 != nil:
		return S3
	case c.GCS != nil:
		return GCS
	default:
		return ""
	}
}

// Validate implements the check.Validatable interface. Members validate themselves.
func (c Config) Validate() []error {
	n := 0
	for _, set := range []bool{c.SharedFS != nil, c.S3 != nil, c.GCS != nil} {
		if set {
			n++
		}
	}
	return []error{check.True(n == 1, "exactly one storage backend must be configured")}
}

// Printable returns a copy safe to log, with S3 credentials hidden.
func (c Config) Printable() Config {
	out := c
	if c.S3 != nil {
		s3 := *c.S3
		hidden := "********"
		if s3.AccessKey != nil {
			s3.AccessKey = &hidden
		}
		if s3.SecretKey != nil {
			s3.SecretKey = &hidden
		}
		out.S3 = &s3
	}
	return out
}

// MarshalJSON flattens the configured member next to its type tag.
func (c Config) MarshalJSON() ([]byte, error) {
	var member interface{}
	switch c.Type() {
	case SharedFS:
		member = c.SharedFS
	case S3:
		member = c.S3
	case GCS:
		member = c.GCS
	default:
		return []byte("null"), nil
	}
	bs, err := json.Marshal(member)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(bs, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(c.Type())
	fields["type"] = tag
	return json.Marshal(fields)
}

// UnmarshalJSON selects the member named by "type" and decodes the object into it.
func (c *Config) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	*c = Config{}
	switch tagged.Type {
	case SharedFS:
		c.SharedFS = &SharedFSConfig{}
		return json.Unmarshal(data, c.SharedFS)
	case S3:
		c.S3 = &S3Config{}
		return json.Unmarshal(data, c.S3)
	case GCS:
		c.GCS = &GCSConfig{}
		return json.Unmarshal(data, c.GCS)
	default:
		return errors.Errorf("unknown storage type %q (expected %s, %s or %s)",
			tagged.Type, SharedFS, S3, GCS)
	}
}
