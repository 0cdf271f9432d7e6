package sink

// Multi fans every call out to each sink in order. The first error stops the
// fan-out and is returned.
type Multi []Sink

// DeclareChart implements [Sink].
func (m Multi) DeclareChart(c Chart) error {
	for _, s := range m {
		if err := s.DeclareChart(c); err != nil {
			return err
		}
	}
	return nil
}

// DeclareDimension implements [Sink].
func (m Multi) DeclareDimension(chartID string, d Dimension) error {
	for _, s := range m {
		if err := s.DeclareDimension(chartID, d); err != nil {
			return err
		}
	}
	return nil
}

// Feed implements [Sink].
func (m Multi) Feed(chartID, dimensionID string, value int64) error {
	for _, s := range m {
		if err := s.Feed(chartID, dimensionID, value); err != nil {
			return err
		}
	}
	return nil
}

// Commit implements [Sink].
func (m Multi) Commit(chartID string) error {
	for _, s := range m {
		if err := s.Commit(chartID); err != nil {
			return err
		}
	}
	return nil
}

var _ Sink = Multi(nil)
