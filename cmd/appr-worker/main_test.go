package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 20, 0, 0, time.UTC)

	day, err := exportDay("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", day.Format("2006-01-02"))

	day, err = exportDay("2025-12-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), day)

	_, err = exportDay("31/12/2025", now)
	assert.Error(t, err)
}
