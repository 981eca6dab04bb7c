package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
	"github.com/nurpe/foodshare-pickups/internal/model"
	"github.com/nurpe/foodshare-pickups/internal/repository"
)

// Transactor runs fn in one transaction carried by the context.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OwnerResolver tells which establishment owns a food lot.
type OwnerResolver interface {
	ResolveEstablishmentOwner(ctx context.Context, foodID uuid.UUID) (uuid.UUID, error)
}

// principalFilter restricts pickup queries to what the principal may see.
func principalFilter(principal model.Principal) (repository.PickupFilter, error) {
	switch {
	case principal.IsAdmin():
		return repository.PickupFilter{}, nil
	case principal.IsBeneficiary():
		id := principal.UserID
		return repository.PickupFilter{BeneficiaryID: &id}, nil
	case principal.IsEstablishment():
		id := principal.OrgID
		return repository.PickupFilter{EstablishmentID: &id}, nil
	default:
		return repository.PickupFilter{}, ErrForbidden
	}
}

func canView(principal model.Principal, pickup *model.Pickup) bool {
	switch {
	case principal.IsAdmin():
		return true
	case principal.IsBeneficiary():
		return pickup.BeneficiaryID == principal.UserID
	case principal.IsEstablishment():
		return pickup.EstablishmentID == principal.OrgID
	default:
		return false
	}
}

// authorize checks that principal is the party the action requires on pickup.
func authorize(ctx context.Context, owners OwnerResolver, principal model.Principal, pickup *model.Pickup, action lifecycle.Action) error {
	party, err := lifecycle.RequiredParty(action)
	if err != nil {
		return err
	}

	switch party {
	case lifecycle.PartyBeneficiary:
		if principal.IsBeneficiary() && principal.UserID == pickup.BeneficiaryID {
			return nil
		}
	case lifecycle.PartyEstablishment:
		if !principal.IsEstablishment() {
			break
		}
		owner, err := owners.ResolveEstablishmentOwner(ctx, pickup.FoodLotID)
		if err != nil {
			return notFound(err, "food lot")
		}
		if owner == principal.OrgID {
			return nil
		}
	}
	return fmt.Errorf("%w: only the %s of this pickup may %s it", ErrForbidden, party, action)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
