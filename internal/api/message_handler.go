package api

import (
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"github.com/rudhramentertainment/RBackend/internal/service"
	"github.com/rudhramentertainment/RBackend/internal/storage"
	"github.com/rudhramentertainment/RBackend/internal/utils"
)

// sendInput is the decoded body of a send request, JSON or multipart.
type sendInput struct {
	Receivers   []string
	Body        string
	ClientID    string
	Attachments []domain.Attachment
}

func (s *server) parseSend(c *fiber.Ctx) (*sendInput, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return s.parseMultipartSend(c)
	}
	var body struct {
		Receivers any    `json:"receivers"`
		Message   string `json:"message"`
		ClientID  string `json:"clientId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return nil, fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	recv, err := service.NormalizeReceivers(body.Receivers)
	if err != nil {
		return nil, err
	}
	return &sendInput{Receivers: recv, Body: body.Message, ClientID: body.ClientID}, nil
}

func (s *server) parseMultipartSend(c *fiber.Ctx) (*sendInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid multipart body", domain.ErrValidation)
	}
	in := &sendInput{
		Body:     firstValue(form.Value["message"]),
		ClientID: firstValue(form.Value["clientId"]),
	}
	if in.Receivers, err = service.NormalizeReceivers(form.Value["receivers"]); err != nil {
		return nil, err
	}

	files := form.File["files"]
	if len(files) == 0 {
		return in, nil
	}
	if s.attachments == nil {
		return nil, fmt.Errorf("%w: attachments are not enabled", domain.ErrValidation)
	}
	if len(files) > s.attachments.MaxFiles() {
		return nil, fmt.Errorf("%w: at most %d files", domain.ErrValidation, s.attachments.MaxFiles())
	}
	uploads := make([]storage.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, storage.Upload{Name: fh.Filename, MimeType: fh.Header.Get(fiber.HeaderContentType), Data: data})
	}
	if in.Attachments, err = s.attachments.SaveAll(c.UserContext(), uploads); err != nil {
		return nil, err
	}
	return in, nil
}

func firstValue(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (s *server) sendDirect(c *fiber.Ctx) error {
	id := identity(c)
	in, err := s.parseSend(c)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	m, err := s.messages.SendDirect(c.UserContext(), id.UserID, in.Receivers, in.Body, in.Attachments, in.ClientID)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, m)
}

func (s *server) sendGroup(c *fiber.Ctx) error {
	id := identity(c)
	in, err := s.parseSend(c)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	m, err := s.messages.SendGroup(c.UserContext(), id.UserID, in.Body, in.Attachments, in.ClientID)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, m)
}

func (s *server) inbox(c *fiber.Ctx) error {
	id := identity(c)
	msgs, err := s.messages.ListInbox(c.UserContext(), id.UserID, id.Role)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, msgs)
}

func (s *server) conversation(c *fiber.Ctx) error {
	id := identity(c)
	peer, err := domain.ParseID(c.Params("peerId"))
	if err != nil {
		return writeError(c, s.logger, err)
	}
	msgs, err := s.messages.ListConversation(c.UserContext(), id.UserID, peer)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, msgs)
}

func (s *server) groupHistory(c *fiber.Ctx) error {
	msgs, err := s.messages.ListGroup(c.UserContext())
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, msgs)
}

func (s *server) unreadCounts(c *fiber.Ctx) error {
	counts, err := s.unread.UnreadCounts(c.UserContext(), identity(c).UserID)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, counts)
}

func (s *server) markRead(c *fiber.Ctx) error {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return writeError(c, s.logger, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
	}
	n, err := s.messages.MarkRead(c.UserContext(), identity(c).UserID, body.IDs)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"modified": n})
}

func (s *server) deleteThread(c *fiber.Ctx) error {
	id := identity(c)
	if c.Query("userA") == "" || c.Query("userB") == "" {
		return writeError(c, s.logger, fmt.Errorf("%w: userA and userB are required", domain.ErrValidation))
	}
	a, err := domain.ParseID(c.Query("userA"))
	if err != nil {
		return writeError(c, s.logger, err)
	}
	b, err := domain.ParseID(c.Query("userB"))
	if err != nil {
		return writeError(c, s.logger, err)
	}
	n, err := s.messages.DeleteThread(c.UserContext(), a, b, id.Role)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"deleted": n})
}

func (s *server) clearGroup(c *fiber.Ctx) error {
	n, err := s.messages.ClearGroup(c.UserContext(), identity(c).Role)
	if err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"deleted": n})
}

func (s *server) deleteMessage(c *fiber.Ctx) error {
	id := identity(c)
	msgID, err := domain.ParseID(c.Params("id"))
	if err != nil {
		return writeError(c, s.logger, err)
	}
	if err := s.messages.DeleteMessage(c.UserContext(), msgID, id.UserID, id.Role); err != nil {
		return writeError(c, s.logger, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"deleted": msgID.Hex()})
}
