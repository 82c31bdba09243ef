package metrics

// Band classifies a health value.
type Band int

const (
	Danger Band = iota
	Warning
	Good
	Excellent
)

const (
	excellentFloor = 130.0
	goodFloor      = 100.0
	warningFloor   = 80.0
)

// HealthBand maps a health ratio to its band. Lower bounds are inclusive.
func HealthBand(health float64) Band {
	switch {
	case health >= excellentFloor:
		return Excellent
	case health >= goodFloor:
		return Good
	case health >= warningFloor:
		return Warning
	}
	return Danger
}

func (b Band) String() string {
	switch b {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Warning:
		return "warning"
	}
	return "danger"
}

// Label is the pt-BR badge text.
func (b Band) Label() string {
	switch b {
	case Excellent:
		return "Excelente"
	case Good:
		return "Boa"
	case Warning:
		return "Alerta"
	}
	return "Perigo"
}

// BadgeClass is the CSS class of the dashboard badge.
func (b Band) BadgeClass() string {
	switch b {
	case Excellent, Good:
		return "badge success"
	case Warning:
		return "badge warning"
	}
	return "badge danger"
}

// Advice is the dashboard alert text for the band.
func (b Band) Advice() string {
	switch b {
	case Danger:
		return "Perigo: reduza despesas ou aumente entradas nesta semana."
	case Warning:
		return "Alerta: acompanhe categorias variáveis para evitar déficit."
	}
	return "Tudo em ordem. Continue registrando para manter o histórico."
}
