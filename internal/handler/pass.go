package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

// PassHandler serves the catalog and the member's own passes.
type PassHandler struct {
	Core *service.Coordinator
}

func NewPassHandler(core *service.Coordinator) *PassHandler {
	if core == nil {
		panic("nil coordinator passed to NewPassHandler")
	}
	return &PassHandler{Core: core}
}

type purchaseReq struct {
	PassID uint64 `json:"pass_id"`
}

// Catalog: GET /passes (public, cached).
func (h *PassHandler) Catalog(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	defs, err := h.Core.Catalog().List(ctx)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]passDefResp, 0, len(defs))
	for _, d := range defs {
		items = append(items, toPassDefResp(d))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Purchase: POST /purchase {pass_id}.  The new pass starts inactive.
func (h *PassHandler) Purchase(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c, "unauthorized", "unauthorized")
	}
	var req purchaseReq
	if err := c.Bind(&req); err != nil || req.PassID == 0 {
		return badRequest(c, "pass_id required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := h.Core.Purchase(ctx, uid, req.PassID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toUserPassResp(p, h.Core.Now()))
}

// MyPasses: GET /user/passes, balances brought up to date.
func (h *PassHandler) MyPasses(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c, "unauthorized", "unauthorized")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	passes, err := h.Core.ListPasses(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	now := h.Core.Now()
	out := make([]userPassResp, 0, len(passes))
	for _, p := range passes {
		out = append(out, toUserPassResp(p, now))
	}
	return c.JSON(http.StatusOK, out)
}
