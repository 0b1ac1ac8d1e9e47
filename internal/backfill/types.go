package backfill

// FileSummary aggregates the results for one input file.
type FileSummary struct {
	Path          string
	Conversations int
	Alerts        int
	Errors        int
	ScoreTotal    int
	Critical      int
}

// AvgScore is the mean overall score of the file's reports.
func (f FileSummary) AvgScore() float64 {
	if f.Conversations == 0 {
		return 0
	}
	return float64(f.ScoreTotal) / float64(f.Conversations)
}
