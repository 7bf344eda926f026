package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"jobmail/internal/model"
)

var exportHeader = []string{
	"appID", "clientID", "company", "position", "interview_type", "previous_interview",
	"result", "interviewers", "submission_date", "recent_date",
}

type ExportService struct {
	users UserStore
	apps  ApplicationStore
}

func NewExportService(users UserStore, apps ApplicationStore) *ExportService {
	return &ExportService{users: users, apps: apps}
}

// ExportCSV 用户不存在返回 ErrUnknownOwner，没有记录返回 ErrNotFound
func (s *ExportService) ExportCSV(ctx context.Context, ownerID string) (string, error) {
	ok, err := s.users.Exists(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrUnknownOwner, ownerID)
	}

	apps, err := s.apps.ListByOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return "", fmt.Errorf("applications for %s: %w", ownerID, model.ErrNotFound)
	}

	var b strings.Builder
	if err := WriteCSV(&b, apps); err != nil {
		return "", err
	}
	return b.String(), nil
}

// WriteCSV 写表头和每条记录
func WriteCSV(w io.Writer, apps []model.Application) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, a := range apps {
		row := append([]string{strconv.FormatInt(a.AppID, 10), a.OwnerID}, a.Values()...)
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
