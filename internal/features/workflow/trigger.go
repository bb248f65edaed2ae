package workflow

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type TriggerType string

const (
	TriggerAmount   TriggerType = "amount"
	TriggerDiscount TriggerType = "discount"
	TriggerAction   TriggerType = "action"
)

// TriggerDefinition is the stored form of a trigger,
// e.g. {"type":"amount","threshold":5000} or {"type":"action","action":"storno"}.
type TriggerDefinition struct {
	Type      TriggerType `bson:"type" json:"type"`
	Threshold *float64    `bson:"threshold,omitempty" json:"threshold,omitempty"`
	Action    string      `bson:"action,omitempty" json:"action,omitempty"`
}

// Trigger decides whether a document needs the template it belongs to.
// The set of implementations is closed: AmountTrigger, DiscountTrigger, ActionTrigger.
type Trigger interface {
	Fires(data map[string]any) bool
	Definition() TriggerDefinition
	trigger()
}

// AmountTrigger fires when betrag/amount reaches the threshold
type AmountTrigger struct {
	Threshold float64
}

// DiscountTrigger fires when rabatt/discount reaches the threshold
type DiscountTrigger struct {
	Threshold float64
}

// ActionTrigger fires when the document's action equals Name
type ActionTrigger struct {
	Name string
}

func (AmountTrigger) trigger()   {}
func (DiscountTrigger) trigger() {}
func (ActionTrigger) trigger()   {}

func (t AmountTrigger) Fires(data map[string]any) bool {
	return numberField(data, "betrag", "amount") >= t.Threshold
}

func (t DiscountTrigger) Fires(data map[string]any) bool {
	return numberField(data, "rabatt", "discount") >= t.Threshold
}

func (t ActionTrigger) Fires(data map[string]any) bool {
	action, ok := data["action"].(string)
	return ok && action == t.Name
}

func (t AmountTrigger) Definition() TriggerDefinition {
	return TriggerDefinition{Type: TriggerAmount, Threshold: &t.Threshold}
}

func (t DiscountTrigger) Definition() TriggerDefinition {
	return TriggerDefinition{Type: TriggerDiscount, Threshold: &t.Threshold}
}

func (t ActionTrigger) Definition() TriggerDefinition {
	return TriggerDefinition{Type: TriggerAction, Action: t.Name}
}

// Compile turns the stored form into its variant
func (d TriggerDefinition) Compile() (Trigger, error) {
	switch d.Type {
	case TriggerAmount, TriggerDiscount:
		if d.Threshold == nil || math.IsNaN(*d.Threshold) || math.IsInf(*d.Threshold, 0) {
			return nil, fmt.Errorf("%w: %s trigger needs a finite threshold", ErrInvalidTemplate, d.Type)
		}
		if d.Type == TriggerAmount {
			return AmountTrigger{Threshold: *d.Threshold}, nil
		}
		return DiscountTrigger{Threshold: *d.Threshold}, nil
	case TriggerAction:
		if strings.TrimSpace(d.Action) == "" {
			return nil, fmt.Errorf("%w: action trigger needs an action name", ErrInvalidTemplate)
		}
		return ActionTrigger{Name: d.Action}, nil
	default:
		return nil, fmt.Errorf("%w: unknown trigger type %q", ErrInvalidTemplate, d.Type)
	}
}

// numberField returns the first non-zero numeric value among keys, 0 if none
func numberField(data map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := toFloat(data[key]); ok && v != 0 {
			return v
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
