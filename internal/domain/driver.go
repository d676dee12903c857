package domain

// Driver represents a transport driver in the system.
type Driver struct {
	ID                 string
	Name               string
	Phone              string
	AdditionalMileRate float64 // applied beyond the highest rate tier
	CancellationRate   float64 // flat payout for cancelled/no-show trips; zero when unconfigured
	NotifyBySMS        bool
}
