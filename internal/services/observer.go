package services

import "giveaway/internal/models"

// Observer receives pipeline observations, typically for metrics.
type Observer interface {
	ObservePage(src models.Source, names int)
	ObservePool(stage string, size int)
	ObserveDraw(mode string)
}

type nopObserver struct{}

func (nopObserver) ObservePage(models.Source, int) {}
func (nopObserver) ObservePool(string, int)        {}
func (nopObserver) ObserveDraw(string)             {}
