// Package blob is the entry point for event-file object storage. It
// re-exports the core contract and selects a backend from the environment.
package blob

import (
	"context"
	"fmt"

	"eventmix/internal/blob/core"
	"eventmix/internal/config"
	"eventmix/internal/infra/blob/fs"
	"eventmix/internal/infra/blob/memory"
	"eventmix/internal/infra/blob/s3"
)

type (
	Store            = core.Store
	Driver           = core.Driver
	Info             = core.Info
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	S3Config         = s3.Config
)

const (
	ContentTypeAsciiv3  = core.ContentTypeAsciiv3
	ContentTypeGenEvent = core.ContentTypeGenEvent

	MetaFormat = core.MetaFormat
	MetaRunID  = core.MetaRunID
	MetaTool   = core.MetaTool

	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// EnvPrefix namespaces the blob settings.
const EnvPrefix = config.Prefix + "BLOB_"

// Settings selects and configures a backend.
//
//	EVENTMIX_BLOB_DRIVER      fs|s3|memory (default fs)
//	EVENTMIX_BLOB_FS_ROOT     directory for the fs driver (default ./blobdata)
//	EVENTMIX_BLOB_S3_BUCKET   bucket for the s3 driver (required)
//	EVENTMIX_BLOB_S3_REGION   region (default us-east-1)
//	EVENTMIX_BLOB_S3_ENDPOINT custom endpoint, e.g. MinIO
//	EVENTMIX_BLOB_S3_PATH_STYLE
type Settings struct {
	Driver      string `env:"DRIVER" envDefault:"fs"`
	FSRoot      string `env:"FS_ROOT" envDefault:"./blobdata"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3PathStyle bool   `env:"S3_PATH_STYLE" envDefault:"false"`
}

// LoadSettings reads EVENTMIX_BLOB_* variables.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := config.ParseEnvPrefixed(&s, EnvPrefix); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Open builds the backend named by the environment.
func Open(ctx context.Context) (Store, error) {
	s, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	return OpenWith(ctx, s)
}

// OpenWith builds the backend described by s.
func OpenWith(ctx context.Context, s Settings) (Store, error) {
	switch Driver(s.Driver) {
	case DriverFilesystem, "":
		return NewFilesystem(s.FSRoot)
	case DriverS3:
		if s.S3Bucket == "" {
			return nil, fmt.Errorf("%sS3_BUCKET required for s3 driver", EnvPrefix)
		}
		return NewS3(ctx, S3Config{
			Bucket:    s.S3Bucket,
			Region:    s.S3Region,
			Endpoint:  s.S3Endpoint,
			PathStyle: s.S3PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", s.Driver)
	}
}

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) {
	st, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store { return memory.New() }

// NewS3 returns a bucket-backed store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	st, err := s3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// NewMockS3ForTests returns an S3 store over an in-process fake bucket.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
