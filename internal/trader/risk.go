package trader

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// PositionSize рассчитывает размер позиции в базовой валюте:
// риск в деньгах (balance * riskFraction), деленный на расстояние до
// стопа, умноженный на плечо.
func PositionSize(balance, riskFraction, entry, stopLoss float64, leverage int) (float64, error) {
	if balance <= 0 {
		return 0, fmt.Errorf("баланс должен быть положительным, получено %v", balance)
	}
	if entry <= 0 || stopLoss <= 0 {
		return 0, fmt.Errorf("цены входа и стопа должны быть положительными: entry=%v stop=%v", entry, stopLoss)
	}

	distance := math.Abs(entry - stopLoss)
	if distance == 0 {
		return 0, fmt.Errorf("стоп-лосс совпадает с ценой входа")
	}

	riskAmount := balance * riskFraction
	return riskAmount / distance * float64(leverage), nil
}

// RoundToLotStep округляет размер позиции вниз до шага лота биржи.
// Округление вниз не дает превысить рассчитанный риск.
func RoundToLotStep(size, step float64) float64 {
	if step <= 0 {
		return size
	}

	d := decimal.NewFromFloat(size)
	s := decimal.NewFromFloat(step)
	rounded, _ := d.Div(s).Floor().Mul(s).Float64()
	return rounded
}

// clampLeverage приводит плечо рекомендации к допустимому диапазону.
// Нулевое или отрицательное плечо заменяется значением по умолчанию.
func clampLeverage(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}
