package auctionhandler

import (
	"net/http"

	"auctionhouse/internal/services/auction"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc auction.IAuctionService
}

func New(svc auction.IAuctionService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/time", h.serverTime)
	r.POST("/auctions", h.create)
	r.GET("/auctions", h.list)
	r.GET("/auctions/:id", h.info)
	r.GET("/auctions/:id/timer", h.timer)
	r.POST("/auctions/:id/bid", h.bid)
	r.POST("/auctions/:id/cancel", h.cancel)
	r.POST("/auctions/:id/approval", h.approval)
	r.GET("/auctions/:id/checkout", h.checkout)
	r.GET("/users/:id/wins", h.wins)
	r.GET("/users/:id/pending-approvals", h.pendingApprovals)
}

// @Summary		Server time
// @Description	Authoritative clock used by clients to compute their offset.
// @Tags			Clock
// @Success		200	{object}	TimerResponse
// @Router			/time [get]
func (h *Handler) serverTime(c *gin.Context) {
	c.JSON(http.StatusOK, TimerResponse{ServerNow: h.svc.Now().UTC()})
}

// @Summary		Create an auction
// @Description	The caller becomes the seller. Auctions starting in the future are scheduled.
// @Tags			Auctions
// @Param			X-User-ID	header		string				true	"Seller ID"
// @Param			body		body		CreateAuctionBody	true	"Auction payload"
// @Success		201			{object}	auction.Auction
// @Failure		400			{object}	ErrorResponse
// @Failure		409			{object}	ErrorResponse
// @Router			/auctions [post]
func (h *Handler) create(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	var body CreateAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	in := auction.CreateAuctionInput{
		ID:          body.ID,
		SellerID:    actor.UserID,
		BasePrice:   body.BasePrice,
		BuyNowPrice: body.BuyNowPrice,
		EndsAt:      body.EndsAt,
	}
	if body.StartsAt != nil {
		in.StartsAt = *body.StartsAt
	}
	a, err := h.svc.CreateAuction(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary		Get auction details
// @Description	Returns full information about a single auction, with live bid state while it runs.
// @Tags			Auctions
// @Param			id	path		string	true	"Auction ID"	default(auc123)
// @Success		200	{object}	auction.Auction
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) info(c *gin.Context) {
	a, err := h.svc.GetAuction(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary		List auctions
// @Description	Retrieves a paginated list of auctions, optionally filtered by status.
// @Tags			Auctions
// @Param			status	query		string	false	"Status filter"			Enums(scheduled,active,ended,cancelled)
// @Param			limit	query		int		false	"Max results (0‑100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		auction.Auction
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(c *gin.Context) {
	var q ListAuctionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.svc.ListAuctions(c.Request.Context(), auction.Status(q.Status), q.Limit, q.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Auction timer
// @Description	Server time next to the live deadline, for countdown clocks.
// @Tags			Clock
// @Param			id	path		string	true	"Auction ID"	default(auc123)
// @Success		200	{object}	TimerResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id}/timer [get]
func (h *Handler) timer(c *gin.Context) {
	t, err := h.svc.Timer(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	endsAt := t.EndsAt.UTC()
	c.JSON(http.StatusOK, TimerResponse{ServerNow: t.ServerNow.UTC(), EndsAt: &endsAt, Status: t.Status})
}

// @Summary		Place a bid
// @Description	Bids must beat the current bid by the minimum increment. A 409 race_lost means another bid won; refetch and resubmit.
// @Tags			Bids
// @Param			id			path		string			true	"Auction ID"	default(auc123)
// @Param			X-User-ID	header		string			true	"Bidder ID"
// @Param			body		body		PlaceBidBody	true	"Bid payload"
// @Success		200			{object}	auction.BidResult
// @Failure		400			{object}	ErrorResponse
// @Failure		403			{object}	ErrorResponse
// @Failure		409			{object}	ErrorResponse
// @Router			/auctions/{id}/bid [post]
func (h *Handler) bid(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.svc.PlaceBid(c.Request.Context(), c.Param("id"), actor.UserID, body.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary		Cancel an auction
// @Description	Seller or admin cancels an auction that has not ended.
// @Tags			Auctions
// @Param			id			path	string	true	"Auction ID"	default(auc123)
// @Param			X-User-ID	header	string	true	"Caller ID"
// @Param			X-User-Role	header	string	false	"Caller role"	Enums(admin)
// @Success		202
// @Failure		403	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id}/cancel [post]
func (h *Handler) cancel(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.svc.CancelAuction(c.Request.Context(), c.Param("id"), actor); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// @Summary		Decide on the winning bid
// @Description	Seller approves or rejects a winning bid that stayed below the buy-now price. Decisions are final.
// @Tags			Approvals
// @Param			id			path		string			true	"Auction ID"	default(auc123)
// @Param			X-User-ID	header		string			true	"Caller ID"
// @Param			X-User-Role	header		string			false	"Caller role"	Enums(admin)
// @Param			body		body		ApprovalBody	true	"Decision"
// @Success		200			{object}	auction.Auction
// @Failure		400			{object}	ErrorResponse
// @Failure		403			{object}	ErrorResponse
// @Failure		409			{object}	ErrorResponse
// @Router			/auctions/{id}/approval [post]
func (h *Handler) approval(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	var body ApprovalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.DecideApproval(c.Request.Context(), c.Param("id"), actor, auction.Decision(body.Action), body.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary		Checkout eligibility
// @Description	Whether the caller may pay for the auction.
// @Tags			Approvals
// @Param			id			path		string	true	"Auction ID"	default(auc123)
// @Param			X-User-ID	header		string	true	"Caller ID"
// @Success		200			{object}	CheckoutResponse
// @Failure		404			{object}	ErrorResponse
// @Router			/auctions/{id}/checkout [get]
func (h *Handler) checkout(c *gin.Context) {
	actor, ok := requireUser(c)
	if !ok {
		return
	}
	id := c.Param("id")
	state, err := h.svc.CheckoutEligibility(c.Request.Context(), id, actor.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CheckoutResponse{
		AuctionID: id,
		UserID:    actor.UserID,
		State:     state,
		Allowed:   state == auction.CheckoutUnlocked,
	})
}

// @Summary		My wins
// @Tags			Users
// @Param			id		path		string	true	"User ID"
// @Param			limit	query		int		false	"Max results (0‑100)"	default(10)
// @Param			offset	query		int		false	"Offset"				default(0)
// @Success		200		{array}		auction.Auction
// @Failure		403		{object}	ErrorResponse
// @Router			/users/{id}/wins [get]
func (h *Handler) wins(c *gin.Context) {
	userID, q, ok := h.ownPage(c)
	if !ok {
		return
	}
	out, err := h.svc.ListWins(c.Request.Context(), userID, q.Limit, q.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Pending approvals
// @Description	Ended auctions waiting for the seller's decision; expired ones are flagged.
// @Tags			Users
// @Param			id		path		string	true	"Seller ID"
// @Param			limit	query		int		false	"Max results (0‑100)"	default(10)
// @Param			offset	query		int		false	"Offset"				default(0)
// @Success		200		{array}		PendingApproval
// @Failure		403		{object}	ErrorResponse
// @Router			/users/{id}/pending-approvals [get]
func (h *Handler) pendingApprovals(c *gin.Context) {
	sellerID, q, ok := h.ownPage(c)
	if !ok {
		return
	}
	out, err := h.svc.ListPendingApprovals(c.Request.Context(), sellerID, q.Limit, q.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	now := h.svc.Now()
	res := make([]PendingApproval, 0, len(out))
	for i := range out {
		res = append(res, PendingApproval{Auction: out[i], Expired: out[i].ApprovalExpired(now)})
	}
	c.JSON(http.StatusOK, res)
}

// ownPage binds paging for a per-user read model. Users only see their own
// unless they are admins.
func (h *Handler) ownPage(c *gin.Context) (string, PageQuery, bool) {
	var q PageQuery
	actor, ok := requireUser(c)
	if !ok {
		return "", q, false
	}
	userID := c.Param("id")
	if userID != actor.UserID && !actor.Admin {
		writeError(c, auction.ErrForbidden)
		return "", q, false
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return "", q, false
	}
	return userID, q, true
}
