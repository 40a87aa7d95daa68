package main

// GlobalFlags are the persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath  string
	Cwd         string
	Debug       bool
	MetricsFile string
	HistoryDSN  string
}

// StreamFlags Flag structs to decouple cobra from logic for testing.
type StreamFlags struct {
	Quiet bool
}

type EnvFlags struct {
	All bool
}
