package shell

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storylens_uploads_total",
		Help: "Total number of upload-and-generate attempts.",
	}, []string{"story_type", "outcome"})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storylens_deletes_total",
		Help: "Total number of story delete attempts.",
	}, []string{"outcome"})

	rejectedFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storylens_rejected_files_total",
		Help: "Total number of files refused by the upload filter.",
	})
)

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
