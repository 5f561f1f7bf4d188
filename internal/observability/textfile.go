package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile dumps the metrics gathered by g to path in the text
// exposition format, for a node exporter textfile collector to pick up after
// a batch run. An empty path is a no-op.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, g)
}
