package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"boardgate/internal/fingerprint"
	"boardgate/internal/legacy"
	"boardgate/internal/models"
	"boardgate/internal/ratelimit"
	"boardgate/internal/repository"

	"github.com/gin-gonic/gin"
)

// maxLegacyBody bounds a bbs.cgi submission; classic clients never exceed this
const maxLegacyBody = 512 * 1024

// anonymousName fills in for an empty FROM field
const anonymousName = "名無しさん"

// SessionResolver turns a bare session token into a user record
type SessionResolver interface {
	UserFromToken(ctx context.Context, token string) (*models.User, error)
}

// LegacyHandler implements the bbs.cgi endpoint spoken by classic board
// client software. All input is Shift_JIS form data, all output is a
// Shift_JIS HTML page with HTTP status 200; failure is signalled in the page
// body, never the status code.
type LegacyHandler struct {
	boards   repository.BoardRepository
	limiter  *ratelimit.Limiter
	sessions SessionResolver
	identity *fingerprint.Hasher
}

// NewLegacyHandler creates a new legacy gateway handler
func NewLegacyHandler(
	boards repository.BoardRepository,
	limiter *ratelimit.Limiter,
	sessions SessionResolver,
	identity *fingerprint.Hasher,
) *LegacyHandler {
	return &LegacyHandler{
		boards:   boards,
		limiter:  limiter,
		sessions: sessions,
		identity: identity,
	}
}

// Post handles POST /legacy/:board/bbs.cgi
func (h *LegacyHandler) Post(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLegacyBody))
	if err != nil {
		legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("本文が読み込めません。"))
		return
	}

	form := legacy.ParseForm(raw)

	boardKey := form.Get("bbs")
	if boardKey == "" {
		boardKey = c.Param("board")
	}
	message := form.Get("MESSAGE")
	if message == "" {
		legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("本文がありません。"))
		return
	}

	user := h.sessionUser(c)
	if user == nil {
		legacy.WriteResponse(c.Writer, http.StatusOK, legacy.NotVerifiedPage())
		return
	}

	board, err := h.boards.GetBoardByKey(c.Request.Context(), boardKey)
	if err != nil {
		legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("板がありません。"))
		return
	}

	threadKeyStr, hasKey := form.Lookup("key")
	subject := form.Get("subject")
	newThread := !hasKey || threadKeyStr == ""
	if newThread && subject == "" {
		legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("スレッドタイトルがありません。"))
		return
	}

	action := models.ActionCreateComment
	if newThread {
		action = models.ActionCreateThread
	}

	userHash := h.identity.UserHash(user.ID.String())
	id := ratelimit.Identity{
		UserID:     user.ID.String(),
		IPHash:     h.identity.IPHash(c.ClientIP()),
		DeviceHash: h.identity.DeviceHash(h.deviceToken(c)),
	}

	exempt := user.IsRateLimitExempt || user.IsAdmin()
	decision, err := h.limiter.CheckAndRecord(c.Request.Context(), action, id, exempt)
	if err != nil {
		log.Printf("Legacy gateway rate limit check failed: %v", err)
		legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("しばらくしてから書き込んでください。"))
		return
	}
	if !decision.Allowed {
		remaining := int(time.Until(decision.LockExpiresAt).Seconds())
		if remaining < 1 {
			remaining = 1
		}
		legacy.WriteResponse(c.Writer, http.StatusOK,
			legacy.ErrorPage(fmt.Sprintf("書き込み規制中です。あと %d 秒お待ちください。", remaining)))
		return
	}

	now := time.Now()
	comment := &models.Comment{
		AuthorID:  user.ID,
		Name:      form.Get("FROM"),
		Mail:      form.Get("mail"),
		DisplayID: h.identity.DisplayID(userHash, now),
		Body:      message,
	}
	if comment.Name == "" {
		comment.Name = anonymousName
	}

	var threadKey int64
	if newThread {
		thread := &models.Thread{
			BoardID:   board.ID,
			ThreadKey: now.Unix(),
			Title:     subject,
			AuthorID:  user.ID,
		}
		if err := h.boards.CreateThread(c.Request.Context(), thread, comment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("同じ時刻にスレッドが作成されています。"))
				return
			}
			log.Printf("Legacy gateway thread create failed: %v", err)
			legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("スレッドが作成できませんでした。"))
			return
		}
		threadKey = thread.ThreadKey
	} else {
		threadKey, err = strconv.ParseInt(threadKeyStr, 10, 64)
		if err != nil {
			legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("スレッドがありません。"))
			return
		}
		thread, err := h.boards.GetThreadByKey(c.Request.Context(), board.ID, threadKey)
		if err != nil {
			legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("スレッドがありません。"))
			return
		}
		comment.ThreadID = thread.ID
		if err := h.boards.CreateComment(c.Request.Context(), comment); err != nil {
			log.Printf("Legacy gateway comment create failed: %v", err)
			legacy.WriteResponse(c.Writer, http.StatusOK, legacy.ErrorPage("書き込みできませんでした。"))
			return
		}
	}

	redirect := fmt.Sprintf("../../%s/read.cgi/%d/", board.Key, threadKey)
	legacy.WriteResponse(c.Writer, http.StatusOK, legacy.SuccessPage(redirect))
}

// sessionUser resolves the session cookie. Classic clients carry the token in
// the sid cookie rather than an Authorization header.
func (h *LegacyHandler) sessionUser(c *gin.Context) *models.User {
	token, err := c.Cookie("sid")
	if err != nil || token == "" {
		return nil
	}
	user, err := h.sessions.UserFromToken(c.Request.Context(), token)
	if err != nil {
		return nil
	}
	return user
}

// deviceToken picks the most stable device marker the client offers
func (h *LegacyHandler) deviceToken(c *gin.Context) string {
	if device, err := c.Cookie("device"); err == nil && device != "" {
		return device
	}
	return c.Request.UserAgent()
}
