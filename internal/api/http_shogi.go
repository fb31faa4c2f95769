package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"portal/internal/entity"
	"portal/internal/shogi"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	gameCookieName = "shogi_game"
	kifuListPath   = "/shogi/kifu"
	recentKifuSize = 5
)

func (h *HTTPHandler) ShogiIndex(c *gin.Context) {
	files, err := h.kifu.List()
	if err != nil {
		logrus.WithError(err).Warn("failed to list kifu files")
	}
	if len(files) > recentKifuSize {
		files = files[:recentKifuSize]
	}
	h.render(c, http.StatusOK, "shogi_index.html", gin.H{
		"Title":  "将棋",
		"Recent": files,
	})
}

func (h *HTTPHandler) ShogiBoard(c *gin.Context) {
	gameID, err := h.gameID(c, "")
	if err != nil {
		logrus.WithError(err).Error("failed to allocate game id")
		h.renderError(c, http.StatusInternalServerError, "")
		return
	}
	h.render(c, http.StatusOK, "shogi_board.html", gin.H{
		"Title":  "盤面",
		"GameID": gameID,
	})
}

func (h *HTTPHandler) KifuExamples(c *gin.Context) {
	h.render(c, http.StatusOK, "shogi_kifu_examples.html", gin.H{
		"Title":   "棋譜の書き方",
		"KIF":     shogi.RenderKIF("サンプル対局", shogi.SampleMoves(), time.Now()),
		"Formats": shogi.AllowedFormats,
	})
}

type kifuForm struct {
	Title  string `form:"title"`
	Format string `form:"format"`
	Text   string `form:"kifu_text"`
}

func (h *HTTPHandler) KifuNewPage(c *gin.Context) {
	h.render(c, http.StatusOK, "shogi_new.html", gin.H{
		"Title":   "棋譜を保存",
		"Form":    kifuForm{Format: "kif"},
		"Formats": shogi.AllowedFormats,
	})
}

// KifuNewSubmit 保存后 PRG 跳转到列表
func (h *HTTPHandler) KifuNewSubmit(c *gin.Context) {
	var form kifuForm
	_ = c.ShouldBind(&form)

	name, err := h.kifu.Save(form.Title, form.Format, form.Text)
	if err != nil {
		switch {
		case errors.Is(err, shogi.ErrEmptyKifu):
			addFlash(c, FlashDanger, "棋譜を入力してください")
		case errors.Is(err, shogi.ErrUnsupportedFormat):
			addFlash(c, FlashDanger, "対応していない形式です")
		default:
			logrus.WithError(err).Error("failed to save kifu")
			addFlash(c, FlashDanger, "棋譜の保存中にエラーが発生しました")
		}
		if form.Format == "" {
			form.Format = "kif"
		}
		h.render(c, http.StatusOK, "shogi_new.html", gin.H{
			"Title":   "棋譜を保存",
			"Form":    form,
			"Formats": shogi.AllowedFormats,
		})
		return
	}

	logrus.WithField("filename", name).Info("kifu_saved")
	addFlash(c, FlashSuccess, "棋譜「"+name+"」を保存しました")
	h.redirect(c, kifuListPath)
}

func (h *HTTPHandler) KifuList(c *gin.Context) {
	files, err := h.kifu.List()
	if err != nil {
		logrus.WithError(err).Error("failed to list kifu files")
		addFlash(c, FlashDanger, "棋譜一覧の読み込みに失敗しました")
	}
	h.render(c, http.StatusOK, "shogi_kifu_list.html", gin.H{
		"Title": "棋譜一覧",
		"Files": files,
	})
}

// KifuView 非法文件名直接跳回列表，不触碰文件系统
func (h *HTTPHandler) KifuView(c *gin.Context) {
	name := c.Param("filename")
	content, file, err := h.kifu.Read(name)
	if err != nil {
		switch {
		case errors.Is(err, shogi.ErrInvalidFilename):
			logrus.WithField("filename", name).Warn("rejected kifu filename")
			addFlash(c, FlashDanger, "無効なファイル名です")
		case errors.Is(err, shogi.ErrKifuNotFound):
			addFlash(c, FlashDanger, "棋譜が見つかりません")
		default:
			logrus.WithError(err).WithField("filename", name).Error("failed to read kifu")
			addFlash(c, FlashDanger, "棋譜の読み込みに失敗しました")
		}
		h.redirect(c, kifuListPath)
		return
	}

	meta := shogi.ParseMetadata(file.Filename, content)
	h.render(c, http.StatusOK, "shogi_kifu_view.html", gin.H{
		"Title":   file.Filename,
		"Meta":    meta,
		"File":    file,
		"Content": content,
	})
}

func (h *HTTPHandler) APIKifuFile(c *gin.Context) {
	name := c.Param("filename")
	content, file, err := h.kifu.Read(name)
	if err != nil {
		switch {
		case errors.Is(err, shogi.ErrInvalidFilename):
			BadRequest(c, ErrCodeInvalidFilename, "invalid filename")
		case errors.Is(err, shogi.ErrKifuNotFound):
			NotFound(c, ErrCodeKifuNotFound, "kifu not found")
		default:
			logrus.WithError(err).WithField("filename", name).Error("failed to read kifu")
			InternalError(c, "failed to read kifu")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"filename": file.Filename,
		"format":   file.Format,
		"size":     file.Size,
		"modified": file.Modified,
		"metadata": shogi.ParseMetadata(file.Filename, content),
		"content":  content,
	})
}

// gameID 依次取请求体/查询参数/表单中的 game_id、shogi_game cookie，都没有时生成新的并写入 cookie
func (h *HTTPHandler) gameID(c *gin.Context, fromBody string) (string, error) {
	candidates := []string{fromBody, c.Query("game_id")}
	if c.Request.Method == http.MethodPost && !strings.HasPrefix(c.ContentType(), "application/json") {
		candidates = append(candidates, c.PostForm("game_id"))
	}
	if cookie, err := c.Cookie(gameCookieName); err == nil {
		candidates = append(candidates, cookie)
	}
	for _, id := range candidates {
		id = strings.TrimSpace(id)
		if shogi.ValidGameID(id) {
			return id, nil
		}
	}

	id, err := shogi.NewGameID()
	if err != nil {
		return "", err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     gameCookieName,
		Value:    id,
		Path:     "/shogi",
		MaxAge:   int(h.cfg.MoveLogTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.SessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

func (h *HTTPHandler) APIMove(c *gin.Context) {
	var req entity.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	if err := shogi.ValidateMove(req); err != nil {
		ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeInvalidMove, err.Error(), gin.H{
			"from":  req.From,
			"to":    req.To,
			"piece": req.Piece,
		})
		return
	}
	gameID, err := h.gameID(c, req.GameID)
	if err != nil {
		logrus.WithError(err).Error("failed to allocate game id")
		InternalError(c, "failed to allocate game id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	move, err := h.moves.Append(ctx, gameID, req)
	if err != nil {
		if errors.Is(err, shogi.ErrInvalidMove) {
			BadRequest(c, ErrCodeInvalidMove, err.Error())
			return
		}
		logrus.WithError(err).WithField("game_id", gameID).Error("failed to append move")
		InternalError(c, "failed to record move")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game_id": gameID,
		"move":    move,
	})
}

// APIKifu 空记录时返回示例开局，但不写入日志
func (h *HTTPHandler) APIKifu(c *gin.Context) {
	gameID, err := h.gameID(c, "")
	if err != nil {
		logrus.WithError(err).Error("failed to allocate game id")
		InternalError(c, "failed to allocate game id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	moves, err := h.moves.List(ctx, gameID)
	if err != nil {
		logrus.WithError(err).WithField("game_id", gameID).Error("failed to load moves")
		InternalError(c, "failed to load moves")
		return
	}
	sample := false
	if len(moves) == 0 {
		moves = shogi.SampleMoves()
		sample = true
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game_id": gameID,
		"moves":   moves,
		"sample":  sample,
	})
}

func (h *HTTPHandler) APIReset(c *gin.Context) {
	var req entity.SaveGameRequest
	_ = c.ShouldBindJSON(&req)
	gameID, err := h.gameID(c, req.GameID)
	if err != nil {
		logrus.WithError(err).Error("failed to allocate game id")
		InternalError(c, "failed to allocate game id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.moves.Reset(ctx, gameID); err != nil {
		logrus.WithError(err).WithField("game_id", gameID).Error("failed to reset moves")
		InternalError(c, "failed to reset game")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "game_id": gameID})
}

// APISave 把当前对局渲染成 KIF 存入棋谱目录
func (h *HTTPHandler) APISave(c *gin.Context) {
	var req entity.SaveGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	gameID, err := h.gameID(c, req.GameID)
	if err != nil {
		logrus.WithError(err).Error("failed to allocate game id")
		InternalError(c, "failed to allocate game id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	moves, err := h.moves.List(ctx, gameID)
	if err != nil {
		logrus.WithError(err).WithField("game_id", gameID).Error("failed to load moves")
		InternalError(c, "failed to load moves")
		return
	}
	if len(moves) == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "no moves to save")
		return
	}

	startedAt := time.Now()
	if t, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
		startedAt = t
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "game_" + startedAt.Format("20060102_150405")
	}
	name, err := h.kifu.Save(title, "kif", shogi.RenderKIF(title, moves, startedAt))
	if err != nil {
		logrus.WithError(err).WithField("game_id", gameID).Error("failed to save game")
		InternalError(c, "failed to save game")
		return
	}

	logrus.WithFields(logrus.Fields{"game_id": gameID, "filename": name, "moves": len(moves)}).Info("game_saved")
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"game_id":  gameID,
		"filename": name,
		"moves":    len(moves),
	})
}
