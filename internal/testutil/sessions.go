package testutil

import "time"

// SessionBase is the first login of SessionSamples.
var SessionBase = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

// SessionSamples returns n deterministic training rows of
// (login unix seconds, logout unix seconds, failed attempts). Logins are
// five minutes apart around the clock and sessions last 45 to 75 minutes.
// Most sessions had no failed attempts, every fourth had one, every
// fifteenth had two, and one in 167 was a burst of seven or more.
func SessionSamples(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		login := SessionBase.Add(time.Duration(i) * 5 * time.Minute)
		logout := login.Add(45*time.Minute + time.Duration(i*7%31)*time.Minute)
		failed := 0.0
		if i%4 == 0 {
			failed = 1
		}
		if i%15 == 0 {
			failed = 2
		}
		if i%167 == 83 {
			failed = float64(7 + i/167)
		}
		out[i] = []float64{float64(login.Unix()), float64(logout.Unix()), failed}
	}
	return out
}

// TypicalLogin is a login time in the middle of SessionSamples(500).
func TypicalLogin() time.Time {
	return SessionBase.Add(245 * 5 * time.Minute)
}

// LoginAfterSamples is five minutes after the last login of
// SessionSamples(500), later than anything the model was trained on.
func LoginAfterSamples() time.Time {
	return SessionBase.Add(500 * 5 * time.Minute)
}
