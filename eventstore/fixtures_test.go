package eventstore_test

import (
	"strconv"
	"time"

	"github.com/eventfold/eventstore-go/eventstore"
)

// depositMade and withdrawalMade form the small wallet domain used across
// the package's tests.

type depositMade struct {
	Amount int       `json:"amount"`
	At     time.Time `json:"at"`
}

func (e depositMade) EventType() string        { return "DepositMade" }
func (e depositMade) HasOccurredAt() time.Time { return e.At }

type withdrawalMade struct {
	Amount int       `json:"amount"`
	At     time.Time `json:"at"`
}

func (e withdrawalMade) EventType() string        { return "WithdrawalMade" }
func (e withdrawalMade) HasOccurredAt() time.Time { return e.At }

// balanceProjection folds signed amounts into a running balance.
func balanceProjection() eventstore.Projection[int, int] {
	return eventstore.Projection[int, int]{
		Seed: 0,
		Step: func(balance int, amount int) int { return balance + amount },
	}
}

// intSerializer maps ints to their decimal strings; wire values that are
// not decimal numbers fail to deserialize.
type intSerializer struct{}

func (intSerializer) Serialize(domain int) string {
	return strconv.Itoa(domain)
}

func (intSerializer) Deserialize(wire string) (int, bool) {
	domain, err := strconv.Atoi(wire)
	if err != nil {
		return 0, false
	}

	return domain, true
}
