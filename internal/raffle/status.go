package raffle

type Status uint8

const (
	StatusActive Status = iota
	StatusEnded
	StatusJackpotClaimed
	StatusJackpotExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	case StatusJackpotClaimed:
		return "jackpot_claimed"
	case StatusJackpotExpired:
		return "jackpot_expired"
	default:
		return "unknown"
	}
}

func (s Status) Terminal() bool {
	return s == StatusJackpotClaimed || s == StatusJackpotExpired
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
