package cashbox

import "time"

type TxnType string

const (
	TxnIncome     TxnType = "income"
	TxnExpense    TxnType = "expense"
	TxnCorrection TxnType = "correction"
)

// Cashbox is one branch till. current_balance is always reproducible from
// initial_balance plus the transaction log.
type Cashbox struct {
	ID             int64     `json:"id" db:"id"`
	BranchID       int64     `json:"branch_id" db:"branch_id"`
	Name           string    `json:"name" db:"name"`
	InitialBalance float64   `json:"initial_balance" db:"initial_balance"`
	CurrentBalance float64   `json:"current_balance" db:"current_balance"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is one ledger line. Corrections carry a signed amount; income
// and expense amounts are positive and the type decides the direction.
type Transaction struct {
	ID          int64     `json:"id" db:"id"`
	CashboxID   int64     `json:"cashbox_id" db:"cashbox_id"`
	Type        TxnType   `json:"type" db:"type"`
	Amount      float64   `json:"amount" db:"amount"`
	Reference   string    `json:"reference" db:"reference"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Delta is the signed balance effect of the transaction.
func (t Transaction) Delta() float64 {
	switch t.Type {
	case TxnExpense:
		return -t.Amount
	default:
		return t.Amount
	}
}

// DailySummary folds one day of the log into opening/closing figures.
type DailySummary struct {
	CashboxID int64   `json:"cashbox_id"`
	Date      string  `json:"date"`
	Opening   float64 `json:"opening"`
	Income    float64 `json:"income"`
	Expense   float64 `json:"expense"`
	Closing   float64 `json:"closing"`
	Count     int     `json:"count"`
}

// RecalcReport states the drift between the stored balance and the balance
// re-derived from the full log. Reporting only; nothing is corrected here.
type RecalcReport struct {
	CashboxID         int64   `json:"cashbox_id"`
	PreviousBalance   float64 `json:"previous_balance"`
	CalculatedBalance float64 `json:"calculated_balance"`
	Difference        float64 `json:"difference"`
	TransactionCount  int     `json:"transaction_count"`
}
