package sferror_test

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/queue/file"
	"github.com/farwydi/sferror/queue/memory"
)

func TestQueueLimit(t *testing.T) {
	testsType := []struct {
		name string
		Type func() sferror.Queue
	}{
		{
			name: "Memory",
			Type: func() sferror.Queue {
				return memory.NewQueue()
			},
		},
		{
			name: "File",
			Type: func() sferror.Queue {
				tempFile, err := os.CreateTemp(t.TempDir(), "queue")
				require.NoError(t, err)
				q, err := file.NewQueue(tempFile, &sferror.MetricValue{})
				require.NoError(t, err)
				t.Cleanup(func() { _ = q.Close() })
				return q
			},
		},
	}
	for _, testType := range testsType {
		t.Run(testType.name, func(t *testing.T) {
			for _, limit := range []int{0, 1, 2, 3} {
				t.Run(fmt.Sprintf("Limit=%d", limit), func(t *testing.T) {
					q := testType.Type()
					err := q.Push(&sferror.MetricValue{
						RecordTime: time.Date(2021, 04, 29, 20, 1, 34, 561, time.UTC),
						RunName:    "baseline_v1.5_10yrs",
						MetricName: "SFError_24.15_u",
						SliceID:    101,
						Value:      0.021,
					})
					assert.NoError(t, err)
					err = q.Push(&sferror.MetricValue{
						RecordTime: time.Date(2021, 04, 29, 20, 5, 34, 561, time.UTC),
						RunName:    "footprint_big_sky_v1.5_10yrs",
						MetricName: "SFError_24.15_u",
						SliceID:    102,
						Value:      0.034,
					})
					assert.NoError(t, err)
					models, err := q.Eject(limit)
					assert.NoError(t, err)
					assert.LessOrEqual(t, len(models), limit)

					if limit > 0 {
						require.NotZero(t, len(models))

						d1, ok := models[0].(*sferror.MetricValue)
						assert.True(t, ok)
						require.NotNil(t, d1)
						assert.Equal(t, time.Date(2021, 04, 29, 20, 1, 34, 561, time.UTC), d1.RecordTime)
						assert.Equal(t, "baseline_v1.5_10yrs", d1.RunName)
						assert.EqualValues(t, 101, d1.SliceID)
					}
				})
			}
		})
	}
}

func TestBaseQueue(t *testing.T) {
	tempFile, err := os.CreateTemp(t.TempDir(), "queue")
	require.NoError(t, err)
	fileQueue, err := file.NewQueue(tempFile, &sferror.SummaryStat{})
	require.NoError(t, err)
	defer fileQueue.Close()

	testsType := []struct {
		name string
		Type sferror.Queue
	}{
		{
			name: "Memory",
			Type: memory.NewQueue(),
		},
		{
			name: "File",
			Type: fileQueue,
		},
	}
	for _, testType := range testsType {
		t.Run(testType.name, func(t *testing.T) {
			q := testType.Type

			assert.NoError(t, q.Push(&sferror.SummaryStat{SummaryName: "Median"}))
			assert.NoError(t, q.Push(&sferror.SummaryStat{SummaryName: "Mean"}))

			_, err := q.Eject(100)
			assert.NoError(t, err)

			assert.NoError(t, q.Push(&sferror.SummaryStat{SummaryName: "Rms"}))
			assert.NoError(t, q.Push(&sferror.SummaryStat{SummaryName: "Max"}))

			models, err := q.Eject(100)
			assert.NoError(t, err)

			require.Equal(t, 2, len(models))
			assert.Equal(t, "Rms", models[0].(*sferror.SummaryStat).SummaryName)
			assert.Equal(t, "Max", models[1].(*sferror.SummaryStat).SummaryName)
		})
	}
}
