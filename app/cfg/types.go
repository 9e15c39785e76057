package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Reference data
	SourcesDir string
	RulesFile  string

	// Application configuration
	Port         string
	WorkerCount  int
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
