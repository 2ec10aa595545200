package stage1

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var trainEpochs = promauto.NewCounter(prometheus.CounterOpts{
	Name: "botsweep_stage1_train_epochs",
	Help: "Number of stage1 training epochs completed",
})

var trainLoss = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "botsweep_stage1_train_loss",
	Help: "Mean BCE loss over the most recent training epoch",
})
