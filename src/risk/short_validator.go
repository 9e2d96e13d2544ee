package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradeexecutor/src/gateway"
)

var (
	InitialMarginRatio     = decimal.RequireFromString("0.5")
	MarginSafetyBuffer     = decimal.RequireFromString("0.1")
	HighMarginUsageWarning = decimal.RequireFromString("0.8")
)

// MarginInfo is recomputed on every validation and never stored.
type MarginInfo struct {
	RequiredMargin  decimal.Decimal
	AvailableMargin decimal.Decimal
	// MarginRatio is RequiredMargin/AvailableMargin; Unbounded is set
	// instead when nothing is available.
	MarginRatio  decimal.Decimal
	Unbounded    bool
	IsSufficient bool
}

func (m MarginInfo) ratioPercent() string {
	if m.Unbounded {
		return "Infinity"
	}
	return m.MarginRatio.Mul(decimal.NewFromInt(100)).StringFixed(2)
}

type BalanceSource interface {
	AccountBalances(ctx context.Context, currency string) ([]gateway.AccountBalance, error)
}

// StateStore persists instance states keyed by (strategy, symbol).
// found is false when no row exists yet.
type StateStore interface {
	GetState(ctx context.Context, strategyID uint, symbol string) (state string, found bool, err error)
	SetState(ctx context.Context, strategyID uint, symbol, state string, data map[string]interface{}) error
}

// ShortValidator gates short and cover operations on permission, margin,
// quantity and the instance state machine.
type ShortValidator struct {
	balances BalanceSource
	states   StateStore
	logger   *logrus.Entry
}

func NewShortValidator(balances BalanceSource, states StateStore, logger *logrus.Entry) *ShortValidator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ShortValidator{
		balances: balances,
		states:   states,
		logger:   logger.WithField("component", "short_validator"),
	}
}

// CheckShortPermission treats an account exposing any margin usage as a
// margin account.
func (v *ShortValidator) CheckShortPermission(ctx context.Context, symbol string) ValidationResult {
	balances, err := v.balances.AccountBalances(ctx, "")
	if err != nil {
		v.logger.WithError(err).WithField("symbol", symbol).Error("Short permission check failed")
		return invalid(fmt.Sprintf("Failed to check short selling permission: %s", err.Error()))
	}
	if len(balances) == 0 {
		return invalid("Unable to verify account permissions: account balance not available")
	}

	for _, b := range balances {
		if b.InitMargin.IsPositive() || b.MaintenanceMargin.IsPositive() {
			return ValidationResult{Valid: true}
		}
	}
	return invalid("Account does not support margin trading (short selling requires margin account)")
}

// CalculateShortMargin prices |quantity| * price at the initial margin ratio
// plus the safety buffer, against the USD balance (or the first one).
func (v *ShortValidator) CalculateShortMargin(ctx context.Context, symbol string, quantity, price decimal.Decimal) (*MarginInfo, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("Symbol is required for margin calculation")
	}
	if quantity.IsZero() {
		return nil, errors.New("Quantity cannot be zero")
	}
	if !price.IsPositive() {
		return nil, errors.New("Price must be positive")
	}

	balances, err := v.balances.AccountBalances(ctx, "")
	if err != nil {
		v.logger.WithError(err).WithField("symbol", symbol).Error("Calculate short margin failed")
		return nil, fmt.Errorf("Failed to calculate margin for %s: %w", symbol, err)
	}
	if len(balances) == 0 {
		return nil, errors.New("Unable to get account balance")
	}

	balance := balances[0]
	for _, b := range balances {
		if b.Currency == "USD" {
			balance = b
			break
		}
	}

	required := ShortMarginRequirement(quantity, price)

	available := balance.NetAssets.Sub(balance.InitMargin).Sub(balance.MaintenanceMargin)
	if available.IsNegative() {
		available = decimal.Zero
	}

	info := &MarginInfo{
		RequiredMargin:  required,
		AvailableMargin: available,
		IsSufficient:    available.GreaterThanOrEqual(required),
	}
	if available.IsPositive() {
		info.MarginRatio = required.Div(available)
	} else {
		info.Unbounded = true
	}
	return info, nil
}

// ShortMarginRequirement is |quantity| * price * 0.5 * 1.1.
func ShortMarginRequirement(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Abs().Mul(price).
		Mul(InitialMarginRatio).
		Mul(decimal.NewFromInt(1).Add(MarginSafetyBuffer))
}

// ValidateMargin rejects insufficient margin and warns above 80% usage.
func (v *ShortValidator) ValidateMargin(ctx context.Context, symbol string, quantity, price decimal.Decimal) ValidationResult {
	if !quantity.IsNegative() {
		return invalid("Quantity must be negative for short selling")
	}

	info, err := v.CalculateShortMargin(ctx, symbol, quantity, price)
	if err != nil {
		return invalid(fmt.Sprintf("Margin validation failed: %s", err.Error()))
	}

	if !info.IsSufficient {
		return ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("Insufficient margin: Required=%s, Available=%s, Ratio=%s%%",
				info.RequiredMargin.StringFixed(2), info.AvailableMargin.StringFixed(2), info.ratioPercent()),
			Margin: info,
		}
	}

	res := ValidationResult{Valid: true, Margin: info}
	if info.MarginRatio.GreaterThan(HighMarginUsageWarning) {
		res.Warning = fmt.Sprintf("High margin usage: %s%% of available margin", info.ratioPercent())
		v.logger.WithFields(map[string]interface{}{
			"symbol":   symbol,
			"required": info.RequiredMargin.String(),
		}).Warn(res.Warning)
	}
	return res
}

// ValidateShortOperation runs permission, margin, quantity and state checks
// in that order and returns the first failure unchanged.
func (v *ShortValidator) ValidateShortOperation(ctx context.Context, strategyID uint, symbol string, quantity, price decimal.Decimal) ValidationResult {
	if res := v.CheckShortPermission(ctx, symbol); !res.Valid {
		return res
	}

	margin := v.ValidateMargin(ctx, symbol, quantity, price)
	if !margin.Valid {
		return margin
	}

	if res := ValidateQuantity(quantity, ActionSell, decimal.Zero); !res.Valid {
		return res
	}

	current, err := v.currentState(ctx, strategyID, symbol, StateIdle)
	if err != nil {
		return invalid(fmt.Sprintf("Short operation validation failed: %s", err.Error()))
	}
	if res := ValidateStateTransition(current, StateShorting); !res.Valid {
		return res
	}

	return margin
}

// ValidateCoverOperation checks the cover quantity against the short
// position, then the SHORT -> COVERING edge. A missing state row reads as
// SHORT here.
func (v *ShortValidator) ValidateCoverOperation(ctx context.Context, strategyID uint, symbol string, quantity, current decimal.Decimal) ValidationResult {
	if res := ValidateQuantity(quantity, ActionBuy, current); !res.Valid {
		return res
	}

	state, err := v.currentState(ctx, strategyID, symbol, StateShort)
	if err != nil {
		return invalid(fmt.Sprintf("Cover operation validation failed: %s", err.Error()))
	}
	return ValidateStateTransition(state, StateCovering)
}

func (v *ShortValidator) currentState(ctx context.Context, strategyID uint, symbol string, fallback State) (State, error) {
	if v.states == nil {
		return fallback, nil
	}
	s, found, err := v.states.GetState(ctx, strategyID, symbol)
	if err != nil {
		return "", err
	}
	if !found || s == "" {
		return fallback, nil
	}
	return State(s), nil
}

// TransitionFrom validates from the stored state, or fallback when none is
// stored, and persists to on success. Callers hold the instance lock.
func (v *ShortValidator) TransitionFrom(ctx context.Context, strategyID uint, symbol string, fallback, to State, data map[string]interface{}) error {
	from, err := v.currentState(ctx, strategyID, symbol, fallback)
	if err != nil {
		return err
	}
	if res := ValidateStateTransition(from, to); !res.Valid {
		return errors.New(res.Error)
	}
	if v.states == nil {
		return nil
	}
	if err := v.states.SetState(ctx, strategyID, symbol, string(to), data); err != nil {
		return err
	}

	v.logger.WithFields(map[string]interface{}{
		"strategy_id": strategyID,
		"symbol":      symbol,
		"from":        from,
		"to":          to,
	}).Info("Instance state updated")
	return nil
}

// RestoreState writes prior back without validation. It undoes a
// transition whose order never filled.
func (v *ShortValidator) RestoreState(ctx context.Context, strategyID uint, symbol string, prior State, data map[string]interface{}) error {
	if v.states == nil {
		return nil
	}
	if err := v.states.SetState(ctx, strategyID, symbol, string(prior), data); err != nil {
		return err
	}

	v.logger.WithFields(map[string]interface{}{
		"strategy_id": strategyID,
		"symbol":      symbol,
		"to":          prior,
	}).Warn("Instance state restored")
	return nil
}
