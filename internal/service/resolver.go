package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

// Reply vocabularies. Opt-out tokens are a distinct set from decline
// tokens: an opt-out suppresses the channel and must never cancel a trip.
var (
	affirmTokens = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true,
		"confirm": true, "c": true, "ok": true, "okay": true, "1": true,
	}
	declineTokens = map[string]bool{
		"no": true, "n": true, "nope": true, "cancel": true, "2": true,
	}
	optOutTokens = map[string]bool{
		"stop": true, "stopall": true, "unsubscribe": true, "end": true, "quit": true,
	}
)

// ClassifyReply maps free reply text onto the closed intent enum.
func ClassifyReply(text string) domain.ReplyIntent {
	token := strings.ToLower(strings.TrimSpace(text))
	token = strings.TrimRight(token, ".!?,")

	switch {
	case optOutTokens[token]:
		return domain.ReplyIntentOptOut
	case affirmTokens[token]:
		return domain.ReplyIntentAffirm
	case declineTokens[token]:
		return domain.ReplyIntentDecline
	default:
		return domain.ReplyIntentUnclear
	}
}

// NormalizePhone builds the comparison key for a phone address: digits
// only, with a leading country-code "1" stripped from 11-digit numbers.
// Carriers disagree about prepending the country code, so matching runs
// on this key as well as the raw form.
func NormalizePhone(address string) string {
	var digits strings.Builder
	for _, r := range address {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	key := digits.String()
	if len(key) == 11 && key[0] == '1' {
		key = key[1:]
	}
	return key
}

// ReplyResolver matches inbound messages to open confirmation requests.
type ReplyResolver struct {
	confirmationRepo repository.ConfirmationRepository
	tripRepo         repository.TripRepository
	now              func() time.Time
}

// NewReplyResolver creates a new ReplyResolver.
func NewReplyResolver(confirmationRepo repository.ConfirmationRepository, tripRepo repository.TripRepository) *ReplyResolver {
	return &ReplyResolver{
		confirmationRepo: confirmationRepo,
		tripRepo:         tripRepo,
		now:              time.Now,
	}
}

// candidate pairs an open request with its trip's scheduled pickup.
type candidate struct {
	request   *domain.ConfirmationRequest
	pickupAt  time.Time
	isSameDay bool
}

// Resolve finds the confirmation request an inbound reply belongs to.
// Preference order when several trips are outstanding for one sender:
// a same-day trip with the soonest pickup, then the soonest future one.
// Parked unclear requests stay matchable until they expire. Returns
// ErrNoPendingConfirmation when the sender has no open request.
func (r *ReplyResolver) Resolve(ctx context.Context, senderAddress string) (*domain.ConfirmationRequest, error) {
	raw := strings.TrimSpace(senderAddress)
	normalized := NormalizePhone(raw)

	requests, err := r.confirmationRepo.ListOpenByPhone(ctx, raw, normalized)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, ErrNoPendingConfirmation
	}
	if len(requests) == 1 {
		return requests[0], nil
	}

	now := r.now()

	candidates := make([]candidate, 0, len(requests))
	for _, req := range requests {
		trip, err := r.tripRepo.GetByID(ctx, req.TripID)
		if err != nil {
			return nil, err
		}
		pickup := trip.ScheduledPickupAt
		candidates = append(candidates, candidate{
			request:   req,
			pickupAt:  pickup,
			isSameDay: sameLocalDay(pickup, now),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].isSameDay != candidates[j].isSameDay {
			return candidates[i].isSameDay
		}
		// Will-call trips sort after anything with a fixed time.
		if candidates[i].pickupAt.IsZero() != candidates[j].pickupAt.IsZero() {
			return !candidates[i].pickupAt.IsZero()
		}
		return candidates[i].pickupAt.Before(candidates[j].pickupAt)
	})

	return candidates[0].request, nil
}

// sameLocalDay reports whether pickup falls on now's calendar day in
// now's location. Truncating to UTC day boundaries would misfile
// early-morning and late-evening trips for zones away from UTC.
func sameLocalDay(pickup, now time.Time) bool {
	if pickup.IsZero() {
		return false
	}
	py, pm, pd := pickup.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return py == ny && pm == nm && pd == nd
}

// LatestForSender retrieves the sender's most recent request in any
// status, used to log late replies against already-resolved requests.
func (r *ReplyResolver) LatestForSender(ctx context.Context, senderAddress string) (*domain.ConfirmationRequest, error) {
	raw := strings.TrimSpace(senderAddress)
	return r.confirmationRepo.LatestByPhone(ctx, raw, NormalizePhone(raw))
}
