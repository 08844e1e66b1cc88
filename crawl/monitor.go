package crawl

// Monitor provides hooks to observe a crawl.
// Callbacks run on the crawling goroutine and must not block.
type Monitor interface {
	Start(seed string)
	PageVisited(url string, visited int)
	PageSkipped(url string)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)              {}
func (n *noopMonitor) PageVisited(_ string, _ int) {}
func (n *noopMonitor) PageSkipped(_ string)        {}
func (n *noopMonitor) Finish(_ *Result)            {}

// Monitors fans callbacks out to several monitors in order.
type Monitors []Monitor

var _ Monitor = Monitors(nil)

func (m Monitors) Start(seed string) {
	for _, mon := range m {
		mon.Start(seed)
	}
}

func (m Monitors) PageVisited(url string, visited int) {
	for _, mon := range m {
		mon.PageVisited(url, visited)
	}
}

func (m Monitors) PageSkipped(url string) {
	for _, mon := range m {
		mon.PageSkipped(url)
	}
}

func (m Monitors) Finish(result *Result) {
	for _, mon := range m {
		mon.Finish(result)
	}
}
