package coordinator

import (
	"DistReduce/internal/config"
	"DistReduce/internal/grep"
	"DistReduce/internal/mapreduce"
	"DistReduce/internal/types"
	"DistReduce/internal/wordcount"
)

// App is a bundled map/reduce pair.
type App struct {
	Mapper  mapreduce.Mapper
	Reducer mapreduce.Reducer
}

// NewApp builds the app cfg names.
func NewApp(cfg config.Config) (App, error) {
	switch cfg.App {
	case "wordcount":
		wc := wordcount.WordCount{}
		return App{Mapper: wc, Reducer: wc}, nil
	case "grep":
		dg, err := grep.NewDistributedGrep(cfg.Pattern)
		if err != nil {
			return App{}, types.ConfigError("app", "%v", err)
		}
		return App{Mapper: dg, Reducer: dg}, nil
	default:
		return App{}, types.ConfigError("app", "unknown app %q", cfg.App)
	}
}
