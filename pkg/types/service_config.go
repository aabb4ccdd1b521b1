package types

// ServiceConfig is the process-wide configuration for the audioformation
// service, distinct from a project's own project.json. It is loaded once
// at startup from YAML with environment overrides.
type ServiceConfig struct {
	Storage        StorageConfig `yaml:"storage"`
	ProjectsRoot   string        `yaml:"projects_root"`
	FFmpegPath     string        `yaml:"ffmpeg_path"`
	FFprobePath    string        `yaml:"ffprobe_path"`
	WorkerPoolSize int           `yaml:"worker_pool_size"`
	LogLevel       string        `yaml:"log_level"`
}

// StorageConfig selects and configures the storage adapter backing the
// project store.
type StorageConfig struct {
	Adapter string           `yaml:"adapter"` // "local" | "s3"
	Local   LocalStorageOpts `yaml:"local"`
	S3      S3StorageOpts    `yaml:"s3"`
}

// LocalStorageOpts configures the local-filesystem storage adapter.
type LocalStorageOpts struct {
	BasePath string `yaml:"base_path"`
}

// S3StorageOpts configures the S3-compatible storage adapter.
type S3StorageOpts struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// DefaultServiceConfig returns a baseline ServiceConfig with sane defaults,
// mirroring the teacher's config.GetDefault.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Storage: StorageConfig{
			Adapter: "local",
			Local:   LocalStorageOpts{BasePath: "./PROJECTS"},
		},
		ProjectsRoot:   "./PROJECTS",
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		WorkerPoolSize: 4,
		LogLevel:       "info",
	}
}
