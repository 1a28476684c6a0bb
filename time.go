package ceresdb

import "time"

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
