package domain

// Facility represents a medical facility whose dispatchers receive
// trip alerts. NotificationEmail is preferred over ContactEmail when set.
type Facility struct {
	ID                string
	Name              string
	ContactEmail      string
	NotificationEmail string
}
