package buildinfo

// Set via -ldflags "-X wavesched/internal/buildinfo.Version=..." at build.
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}
