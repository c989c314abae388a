package httpapi

import (
	"errors"
	"net/http"

	"github.com/vanachterjacob/BC-MCP/internal/auth"
	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/rules"
	"github.com/vanachterjacob/BC-MCP/internal/storage"
)

func (s *Server) rulesAvailable(w http.ResponseWriter) bool {
	if s.opts.Rules == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Rule storage is not configured")
		return false
	}
	return true
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if !s.rulesAvailable(w) {
		return
	}
	q := r.URL.Query()
	list, err := s.opts.Rules.List(r.Context(), storage.RuleFilter{
		Type: models.Category(q.Get("type")),
		Name: q.Get("name"),
	})
	if err != nil {
		s.serverError(w, "list rules", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDefaultRules lists the built-in rule sets shipped with the server.
func (s *Server) handleDefaultRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rules.Defaults())
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	if !s.rulesAvailable(w) {
		return
	}
	rec, err := s.opts.Rules.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.ruleError(w, "get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if !s.rulesAvailable(w) {
		return
	}
	var params storage.CreateRuleParams
	if err := decodeJSON(w, r, &params); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if res := rules.Check(params.Name, string(params.Type), params.Content); !res.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Please provide name, type, and content for the rule",
			"errors":  res.Errors,
		})
		return
	}
	if p, ok := auth.FromContext(r.Context()); ok {
		params.CreatedBy = p.UserID
	}

	rec, err := s.opts.Rules.Create(r.Context(), params)
	if err != nil {
		s.ruleError(w, "create rule", err)
		return
	}
	s.log.Info("rule created", "id", rec.ID, "name", rec.Name, "by", params.CreatedBy)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	if !s.rulesAvailable(w) {
		return
	}
	var params storage.UpdateRuleParams
	if err := decodeJSON(w, r, &params); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := checkRuleUpdate(params); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Invalid rule update",
			"errors":  errs,
		})
		return
	}

	rec, err := s.opts.Rules.Update(r.Context(), r.PathValue("id"), params)
	if err != nil {
		s.ruleError(w, "update rule", err)
		return
	}
	s.log.Info("rule updated", "id", rec.ID, "version", rec.Version)
	writeJSON(w, http.StatusOK, rec)
}

// checkRuleUpdate validates only the fields an update supplies.
func checkRuleUpdate(p storage.UpdateRuleParams) []string {
	name, typ, content := "-", string(models.CategoryOther), map[string]any{}
	if p.Name != nil {
		name = *p.Name
	}
	if p.Type != nil {
		typ = string(*p.Type)
	}
	if p.Content != nil {
		content = p.Content
	}
	return rules.Check(name, typ, content).Errors
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if !s.rulesAvailable(w) {
		return
	}
	rec, err := s.opts.Rules.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.ruleError(w, "delete rule", err)
		return
	}
	s.log.Info("rule deleted", "id", rec.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Rule deleted successfully",
		"rule":    rec,
	})
}

func (s *Server) ruleError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Rule not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeMessage(w, http.StatusConflict, "A rule with this name already exists")
	default:
		s.serverError(w, op, err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op+" failed", "error", err)
	writeMessage(w, http.StatusInternalServerError, "Server error")
}
