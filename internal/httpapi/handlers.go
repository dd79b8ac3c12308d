package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/period"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"at":       time.Now().UTC().Format(time.RFC3339),
		"revision": a.service.Revision(),
		"dirty":    a.service.Dirty(),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeBody decodes the request and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (a *API) periodFromQuery(r *http.Request) (period.Range, error) {
	q := r.URL.Query()
	return a.service.ParsePeriod(q.Get("start"), q.Get("end"))
}

func (a *API) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := a.service.Export(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (a *API) handleImportDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.Import(r.Context(), raw); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revision": a.service.Revision()})
}

func (a *API) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	if err := a.service.Flush(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"revision": a.service.Revision(),
		"dirty":    false,
	})
}

func (a *API) handleListPDVs(w http.ResponseWriter, r *http.Request) {
	pdvs, err := a.service.ListPDVs(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pdvs": pdvs})
}

func (a *API) handleCreatePDV(w http.ResponseWriter, r *http.Request) {
	var req domain.PDVCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pdv, err := a.service.CreatePDV(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"pdv": pdv})
}

func (a *API) handleGetPDV(w http.ResponseWriter, r *http.Request) {
	pdv, err := a.service.GetPDV(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pdv": pdv})
}

func (a *API) handleAddFixedCost(w http.ResponseWriter, r *http.Request) {
	var req domain.CostEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cost, err := a.service.AddFixedCost(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cost": cost})
}

func (a *API) handleAddVariableCost(w http.ResponseWriter, r *http.Request) {
	var req domain.CostEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cost, err := a.service.AddVariableCost(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cost": cost})
}

func (a *API) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req domain.RestockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.PDVID = chi.URLParam(r, "id")
	result, err := a.service.Restock(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.PDVID = chi.URLParam(r, "id")
	result, err := a.service.RecordSale(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Quantity == nil {
		writeError(w, http.StatusBadRequest, errors.New("quantity is required"))
		return
	}
	result, err := a.service.AdjustInventory(r.Context(), domain.InventoryAdjustRequest{
		PDVID:     chi.URLParam(r, "id"),
		ProductID: chi.URLParam(r, "productId"),
		Quantity:  *body.Quantity,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handlePDVMetrics(w http.ResponseWriter, r *http.Request) {
	rng, err := a.periodFromQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	m, err := a.service.PDVMetrics(r.Context(), chi.URLParam(r, "id"), rng)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": m})
}

func (a *API) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := a.service.GoalProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goal": progress})
}

func (a *API) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req domain.GoalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	progress, err := a.service.SetGoal(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goal": progress})
}

func (a *API) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteGoal(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	rng, err := a.periodFromQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	products, err := a.service.ListProducts(r.Context(), rng)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := a.service.ListClients(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (a *API) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	client, err := a.service.CreateClient(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"client": client})
}

func (a *API) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	client, err := a.service.UpdateClient(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": client})
}

func (a *API) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleClientStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := a.service.ClientStatement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statement)
}

type amountBody struct {
	Amount decimal.Decimal `json:"amount"`
}

func (a *API) handleClientPayment(w http.ResponseWriter, r *http.Request) {
	var body amountBody
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := a.service.SettleClientDebt(r.Context(), domain.ClientPaymentRequest{
		ClientID: chi.URLParam(r, "id"),
		Amount:   body.Amount,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// financeKind accepts the singular and plural path forms.
func financeKind(r *http.Request) (string, error) {
	kind := strings.TrimSuffix(strings.ToLower(chi.URLParam(r, "kind")), "s")
	switch kind {
	case domain.FinancePayable, domain.FinanceReceivable:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: unknown finance kind %q", domain.ErrValidation, chi.URLParam(r, "kind"))
	}
}

func (a *API) handleListFinance(w http.ResponseWriter, r *http.Request) {
	kind, err := financeKind(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	entries, err := a.service.ListFinanceEntries(r.Context(), kind)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleCreateFinance(w http.ResponseWriter, r *http.Request) {
	kind, err := financeKind(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req domain.FinanceEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := a.service.CreateFinanceEntry(r.Context(), kind, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (a *API) handleUpdateFinance(w http.ResponseWriter, r *http.Request) {
	kind, err := financeKind(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req domain.FinanceEntryUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := a.service.UpdateFinanceEntry(r.Context(), kind, chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": entry})
}

func (a *API) handleDeleteFinance(w http.ResponseWriter, r *http.Request) {
	kind, err := financeKind(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.service.DeleteFinanceEntry(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleFinancePayment(w http.ResponseWriter, r *http.Request) {
	kind, err := financeKind(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var body amountBody
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := a.service.SettleFinanceEntry(r.Context(), domain.FinancePaymentRequest{
		Kind:    kind,
		EntryID: chi.URLParam(r, "id"),
		Amount:  body.Amount,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleCash(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.Cash(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req domain.CashMovementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := a.service.Withdraw(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleWalletDeposit(w http.ResponseWriter, r *http.Request) {
	var req domain.CashMovementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := a.service.WalletDeposit(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	rng, err := a.periodFromQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	pdvID := strings.TrimSpace(r.URL.Query().Get("pdv"))
	if strings.EqualFold(pdvID, "all") {
		pdvID = ""
	}
	sales, err := a.service.ListSales(r.Context(), pdvID, rng)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleMetricsReport(w http.ResponseWriter, r *http.Request) {
	rng, err := a.periodFromQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	rep, err := a.service.Report(r.Context(), strings.TrimSpace(r.URL.Query().Get("pdv")), rng)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rng, err := a.periodFromQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	dashboard, err := a.service.Dashboard(r.Context(), rng)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
