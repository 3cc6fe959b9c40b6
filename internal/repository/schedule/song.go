package schedule

type Song struct {
	Title   string `redis:"title"`
	BPM     int    `redis:"bpm"`
	Content string `redis:"content"`
}

type SetSongParams struct {
	SongID  string
	Title   string
	BPM     int
	Content string
}
