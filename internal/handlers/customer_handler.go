package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/auth"
	"github.com/Keoroanthony/nuomi-store/internal/models"
	"github.com/Keoroanthony/nuomi-store/internal/report"
)

type UpdateCustomerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	Address  string `json:"address"`
	Role     string `json:"role"`
}

func (h *Handler) customers(c *gin.Context) ([]models.User, error) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Role = auth.ResolveRole(users[i].IdentityRole, users[i].Role, models.RoleCustomer)
	}
	return users, nil
}

// GET /api/admin/customers
func (h *Handler) ListCustomers(c *gin.Context) {
	users, err := h.customers(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// PUT /api/admin/customers/:id
func (h *Handler) UpdateCustomer(c *gin.Context) {
	var req UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.Users.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Role != "" {
		role := models.Role(req.Role)
		if !role.Valid() {
			respondError(c, apperr.Invalid("role", "must be admin or customer"))
			return
		}
		user.Role = role
	}
	user.Name = req.Name
	user.Username = req.Username
	user.Phone = req.Phone
	user.City = req.City
	user.Address = req.Address

	if err := h.Users.Upsert(ctx, user); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DELETE /api/admin/customers/:id removes the local mirror only; the
// identity provider account is untouched.
func (h *Handler) DeleteCustomer(c *gin.Context) {
	id := c.Param("id")
	if id == auth.CurrentUser(c).ID {
		respondError(c, apperr.Invalid("id", "admins cannot remove their own account"))
		return
	}
	if err := h.Users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/admin/customers/report
func (h *Handler) CustomersReport(c *gin.Context) {
	users, err := h.customers(c)
	if err != nil {
		respondError(c, err)
		return
	}

	rows := make([]report.Row, 0, len(users))
	for _, u := range users {
		rows = append(rows, report.Row{
			"name":     u.Name,
			"email":    u.Email,
			"username": u.Username,
			"role":     string(u.Role),
			"phone":    u.Phone,
			"city":     u.City,
			"address":  u.Address,
		})
	}

	columns := []report.Column{
		{Header: "الاسم", DataKey: "name"},
		{Header: "البريد الإلكتروني", DataKey: "email"},
		{Header: "اسم المستخدم", DataKey: "username"},
		{Header: "الدور", DataKey: "role"},
		{Header: "الهاتف", DataKey: "phone"},
		{Header: "المدينة", DataKey: "city"},
		{Header: "العنوان", DataKey: "address"},
	}
	h.sendReport(c, "Customers", "تقرير العملاء", columns, rows)
}
