package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/Adhamjon1112/Kirim-Chiqim/internal/forms"
	"github.com/Adhamjon1112/Kirim-Chiqim/internal/models"
	"github.com/Adhamjon1112/Kirim-Chiqim/internal/storage"
)

// TransactionItem represents a transaction in a list or confirmation view.
type TransactionItem struct {
	ID          int64
	Type        models.TransactionType
	Amount      string
	Description string
	Date        string
	IsIncome    bool
}

func newTransactionItem(t models.Transaction) TransactionItem {
	return TransactionItem{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount.StringFixed(2),
		Description: t.Description,
		Date:        t.Date.Format("02 Jan 2006 15:04"),
		IsIncome:    t.Type == models.TypeIncome,
	}
}

// HomeViewModel is the data passed to the home page template.
type HomeViewModel struct {
	User         *models.User
	Transactions []TransactionItem
	TotalIncome  string
	TotalExpense string
	Balance      string
}

// TransactionFormViewModel is the data passed to the create/update form template.
type TransactionFormViewModel struct {
	Form   *forms.TransactionForm
	IsEdit bool
	ID     int64
}

// DeleteViewModel is the data passed to the delete confirmation template.
type DeleteViewModel struct {
	Transaction TransactionItem
}

// Home renders the list of the current user's transactions with totals.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	transactions, err := h.db.ListTransactions(user.ID)
	if err != nil {
		h.logger(r).WithError(err).Error("failed to list transactions")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Totals are summed as exact decimals; no float drift.
	income := decimal.Zero
	expense := decimal.Zero
	items := make([]TransactionItem, 0, len(transactions))
	for _, t := range transactions {
		if t.Type == models.TypeIncome {
			income = income.Add(t.Amount)
		} else {
			expense = expense.Add(t.Amount)
		}
		items = append(items, newTransactionItem(t))
	}

	h.render(w, r, "home.html", HomeViewModel{
		User:         user,
		Transactions: items,
		TotalIncome:  income.StringFixed(2),
		TotalExpense: expense.StringFixed(2),
		Balance:      income.Sub(expense).StringFixed(2),
	})
}

// CreateTransactionForm renders the form to create a new transaction.
func (h *Handlers) CreateTransactionForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "transaction_form.html", TransactionFormViewModel{Form: forms.EmptyTransactionForm()})
}

// CreateTransaction handles the creation of a new transaction.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	f := forms.ParseTransactionForm(r)
	if !f.Validate() {
		h.render(w, r, "transaction_form.html", TransactionFormViewModel{Form: f})
		return
	}

	t := &models.Transaction{
		UserID:      user.ID,
		Type:        models.TransactionType(f.Type),
		Amount:      f.ParsedAmount(),
		Description: f.Description,
	}
	if err := h.db.CreateTransaction(t); err != nil {
		h.logger(r).WithError(err).Error("failed to create transaction")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/home", http.StatusFound)
}

// UpdateTransactionForm renders the form to edit an existing transaction.
func (h *Handlers) UpdateTransactionForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	t, ok := h.ownedTransaction(w, r, user)
	if !ok {
		return
	}

	h.render(w, r, "transaction_form.html", TransactionFormViewModel{
		Form:   forms.TransactionFormFromModel(t),
		IsEdit: true,
		ID:     t.ID,
	})
}

// UpdateTransaction handles the update of an existing transaction.
// Owner and creation date are left untouched.
func (h *Handlers) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	t, ok := h.ownedTransaction(w, r, user)
	if !ok {
		return
	}

	f := forms.ParseTransactionForm(r)
	if !f.Validate() {
		h.render(w, r, "transaction_form.html", TransactionFormViewModel{Form: f, IsEdit: true, ID: t.ID})
		return
	}

	t.Type = models.TransactionType(f.Type)
	t.Amount = f.ParsedAmount()
	t.Description = f.Description
	if err := h.db.UpdateTransaction(t); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger(r).WithError(err).Error("failed to update transaction")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/home", http.StatusFound)
}

// DeleteTransactionForm renders the delete confirmation page.
func (h *Handlers) DeleteTransactionForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	t, ok := h.ownedTransaction(w, r, user)
	if !ok {
		return
	}

	h.render(w, r, "delete_transaction.html", DeleteViewModel{Transaction: newTransactionItem(*t)})
}

// DeleteTransaction deletes a transaction after confirmation. Repeating the
// delete yields a plain 404, same as a transaction that never existed.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := h.db.DeleteTransaction(id, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger(r).WithError(err).Error("failed to delete transaction")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/home", http.StatusFound)
}

// ownedTransaction fetches the transaction named by the path, scoped to its
// owner. A miss writes a 404 and returns ok=false; the response does not
// say whether the row is missing or owned by someone else.
func (h *Handlers) ownedTransaction(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Transaction, bool) {
	id, err := pathID(r)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}

	t, err := h.db.GetTransaction(id, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		h.logger(r).WithError(err).Error("failed to fetch transaction")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return t, true
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
