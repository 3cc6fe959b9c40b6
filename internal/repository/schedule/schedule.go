package schedule

// ChangeRehearsal is published when the rehearsal list changes. Schedule
// changes publish the monthly id and song changes "song:<id>".
const ChangeRehearsal = "rehearsal"

type Schedule struct {
	Name    string
	Morning []string
	Evening []string
}

type SetScheduleParams struct {
	MonthlyID string
	Name      string
	Morning   []string
	Evening   []string
}
