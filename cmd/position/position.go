package position

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tradeexecutor/src/app"
	"tradeexecutor/src/database"
)

// Position prints the available position of one symbol.
type Position struct {
	Log    *logrus.Entry
	Symbol string
}

func (t *Position) Start() error {
	symbol := strings.ToUpper(strings.TrimSpace(t.Symbol))
	if symbol == "" {
		return errors.New("symbol is required")
	}

	if err := database.InitMainDB(); err != nil {
		t.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}

	a, err := app.New(database.MainDB, t.Log)
	if err != nil {
		return err
	}
	defer a.Close()

	snap := a.Positions.CalculateAvailablePosition(context.Background(), symbol)
	fmt.Printf("%s %s actual=%s pending=%s available=%s\n",
		snap.Symbol, snap.PositionType, snap.ActualQuantity, snap.PendingQuantity, snap.AvailableQuantity)
	return nil
}
