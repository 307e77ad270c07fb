package aquamarine

// Option configures a Backend at construction time, passed to Attempt.
type Option func(*config)

type config struct {
	seatName string
	logger   Logger
}

func defaultConfig() config {
	return config{
		seatName: "seat0",
		logger:   nopLogger{},
	}
}

// WithSeat restricts device discovery to the named seat (spec.md
// §4.A). The default is "seat0".
func WithSeat(name string) Option {
	return func(c *config) { c.seatName = name }
}

// WithLogger supplies the Logger the core routes every diagnostic
// through. The default discards everything.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
