package trader

import (
	"errors"
	"fmt"
)

// Ошибки отклонения сделки на этапе допуска. Это ожидаемые исходы
// фильтрации рекомендаций, а не сбои исполнения.
var (
	ErrPositionExists   = errors.New("по символу уже есть открытая позиция")
	ErrLowConfidence    = errors.New("уверенность рекомендации ниже порога")
	ErrHoldAction       = errors.New("рекомендация hold не исполняется")
	ErrPositionTooSmall = errors.New("размер позиции после округления равен нулю")
	ErrMissingPrices    = errors.New("рекомендация без обязательных цен входа и защиты")
	ErrMarginExceeded   = errors.New("требуемая маржа превышает лимит на позицию")
	ErrMaxPositions     = errors.New("достигнут лимит открытых позиций")
)

// Этапы исполнения сделки
const (
	StageLeverage   = "leverage"
	StageMargin     = "margin"
	StageEntry      = "entry"
	StageStopLoss   = "stop_loss"
	StageTakeProfit = "take_profit"
)

// ExecutionError представляет сбой на одном из этапов исполнения.
// CompensationPerformed показывает, удалось ли закрыть уже открытую
// позицию компенсирующим рыночным ордером.
type ExecutionError struct {
	Symbol                string
	Stage                 string
	Err                   error
	CompensationPerformed bool
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("сбой исполнения %s на этапе %s: %v", e.Symbol, e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
