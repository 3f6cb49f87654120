package logging

import "log/slog"

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPowder is the standardized structured logging key for powder names.
	FieldPowder = "powder"
	// FieldLot is the standardized structured logging key for lot numbers.
	FieldLot = "lot"
	// FieldBatchLot is the standardized structured logging key for blending batch lots.
	FieldBatchLot = "batch_lot"
	// FieldItem is the standardized structured logging key for inspection item names.
	FieldItem = "item"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// WithComponent returns a child logger tagged with a component name.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger.With(slog.String(FieldComponent, component))
}

// LotAttrs builds the standard powder/lot attribute pair used by most
// inspection log lines.
func LotAttrs(powder, lot string) []any {
	return []any{slog.String(FieldPowder, powder), slog.String(FieldLot, lot)}
}
