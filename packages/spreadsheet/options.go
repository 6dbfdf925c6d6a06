package spreadsheet

// DefaultRowCount and DefaultColumnCount are the extents of a new sheet
const (
	DefaultRowCount    = 1000
	DefaultColumnCount = MaxColumns
)

type options struct {
	clock   Clock
	rng     RandomGenerator
	rows    uint32
	columns uint32
}

// Option configures a Sheet or Workbook
type Option func(*options)

// WithClock sets the clock used for NOW() and modification times
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithRandom sets the generator behind RAND()
func WithRandom(rng RandomGenerator) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithExtents sets the row and column counts of new sheets. columns are
// capped at MaxColumns.
func WithExtents(rows, columns uint32) Option {
	return func(o *options) {
		if rows > 0 {
			o.rows = rows
		}
		if columns > 0 {
			o.columns = min(columns, MaxColumns)
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:   &WallClock{},
		rng:     &DefaultRandomGenerator{},
		rows:    DefaultRowCount,
		columns: DefaultColumnCount,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
