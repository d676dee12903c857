package service

import (
	"errors"
	"fmt"
	"testing"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

func TestValidateTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		from    domain.TripStatus
		to      domain.TripStatus
		wantErr error
	}{
		{"pending to scheduled", domain.TripStatusPending, domain.TripStatusScheduled, nil},
		{"pending direct to assigned", domain.TripStatusPending, domain.TripStatusAssigned, nil},
		{"scheduled to assigned", domain.TripStatusScheduled, domain.TripStatusAssigned, nil},
		{"assigned to en_route", domain.TripStatusAssigned, domain.TripStatusEnRoute, nil},
		{"assigned back to scheduled", domain.TripStatusAssigned, domain.TripStatusScheduled, nil},
		{"en_route to arrived", domain.TripStatusEnRoute, domain.TripStatusArrived, nil},
		{"arrived to in_progress", domain.TripStatusArrived, domain.TripStatusInProgress, nil},
		{"in_progress to dropped_off", domain.TripStatusInProgress, domain.TripStatusDroppedOff, nil},
		{"in_progress direct to completed", domain.TripStatusInProgress, domain.TripStatusCompleted, nil},
		{"dropped_off to completed", domain.TripStatusDroppedOff, domain.TripStatusCompleted, nil},
		{"scheduled to no_show", domain.TripStatusScheduled, domain.TripStatusNoShow, nil},
		{"arrived to no_show", domain.TripStatusArrived, domain.TripStatusNoShow, nil},

		{"pending skips to in_progress", domain.TripStatusPending, domain.TripStatusInProgress, ErrInvalidTransition},
		{"scheduled skips to en_route", domain.TripStatusScheduled, domain.TripStatusEnRoute, ErrInvalidTransition},
		{"en_route back to assigned", domain.TripStatusEnRoute, domain.TripStatusAssigned, ErrInvalidTransition},
		{"dropped_off to cancelled", domain.TripStatusDroppedOff, domain.TripStatusCancelled, ErrInvalidTransition},
		{"in_progress to no_show", domain.TripStatusInProgress, domain.TripStatusNoShow, ErrInvalidTransition},

		{"completed is terminal", domain.TripStatusCompleted, domain.TripStatusScheduled, ErrTripTerminal},
		{"cancelled is terminal", domain.TripStatusCancelled, domain.TripStatusPending, ErrTripTerminal},
		{"no_show is terminal", domain.TripStatusNoShow, domain.TripStatusScheduled, ErrTripTerminal},

		{"unknown target", domain.TripStatusPending, domain.TripStatus("paused"), ErrUnknownStatus},
		{"empty target", domain.TripStatusPending, domain.TripStatus(""), ErrUnknownStatus},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateTransition(tc.from, tc.to)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected %s -> %s allowed, got %v", tc.from, tc.to, err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v for %s -> %s, got %v", tc.wantErr, tc.from, tc.to, err)
			}
		})
	}
}

func TestIsTransitionRejection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid transition", ErrInvalidTransition, true},
		{"terminal trip", ErrTripTerminal, true},
		{"unknown status", ErrUnknownStatus, true},
		{"missing reason", ErrMissingReason, true},
		{"not found is not a rejection", repository.ErrNotFound, false},
		{"lock contention is not a rejection", ErrTripBusy, false},
		{"version conflict is not a rejection", repository.ErrVersionConflict, false},
		{"wrapped rejection still counts", fmt.Errorf("transition: %w", ErrTripTerminal), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isTransitionRejection(tc.err); got != tc.want {
				t.Errorf("isTransitionRejection(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
