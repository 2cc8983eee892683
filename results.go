package sferror

import (
	"encoding/json"
	"time"
)

// MetricValue is the metric evaluated at one slice point of one run.
type MetricValue struct {
	RecordTime time.Time `json:"record_time"`
	RunName    string    `json:"run_name"`
	MetricName string    `json:"metric_name"`
	SlicerName string    `json:"slicer_name"`
	Constraint string    `json:"sql_constraint"`
	SliceID    int64     `json:"slice_id"`
	RA         float64   `json:"ra_deg"`
	Dec        float64   `json:"dec_deg"`
	Value      float64   `json:"value"`
}

func (m MetricValue) MarshalBinary() (data []byte, err error) {
	return json.Marshal(m)
}

func (m *MetricValue) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, m)
}

func (m *MetricValue) SQL() string {
	return "INSERT INTO metric_values " +
		"(record_time, run_name, metric_name, slicer_name, sql_constraint, slice_id, ra_deg, dec_deg, value) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
}

func (m *MetricValue) ToExec() []interface{} {
	return []interface{}{
		m.RecordTime,
		m.RunName,
		m.MetricName,
		m.SlicerName,
		m.Constraint,
		m.SliceID,
		m.RA,
		m.Dec,
		m.Value,
	}
}

// SummaryStat reduces all valid MetricValues of a metric on one run to a
// single number.
type SummaryStat struct {
	RecordTime  time.Time `json:"record_time"`
	RunName     string    `json:"run_name"`
	MetricName  string    `json:"metric_name"`
	SlicerName  string    `json:"slicer_name"`
	Constraint  string    `json:"sql_constraint"`
	SummaryName string    `json:"summary_name"`
	Value       float64   `json:"value"`
}

func (s SummaryStat) MarshalBinary() (data []byte, err error) {
	return json.Marshal(s)
}

func (s *SummaryStat) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}

func (s *SummaryStat) SQL() string {
	return "INSERT INTO summary_stats " +
		"(record_time, run_name, metric_name, slicer_name, sql_constraint, summary_name, value) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?)"
}

func (s *SummaryStat) ToExec() []interface{} {
	return []interface{}{
		s.RecordTime,
		s.RunName,
		s.MetricName,
		s.SlicerName,
		s.Constraint,
		s.SummaryName,
		s.Value,
	}
}
