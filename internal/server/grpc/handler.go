package grpc

import (
	"context"

	"github.com/dmitrijs2005/passm/internal/server/models"
)

func (s *GRPCServer) Ping(ctx context.Context, _ *Empty) (*PingResponse, error) {
	return &PingResponse{Status: "ok"}, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	id, err := s.accounts.Register(ctx, req.Email, req.Phone, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, "Register", err)
	}
	return &RegisterResponse{AccountID: id}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	token, err := s.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, "Login", err)
	}
	return &LoginResponse{AccessToken: token}, nil
}

func (s *GRPCServer) Check(ctx context.Context, _ *Empty) (*CheckResponse, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	return &CheckResponse{AccountID: id}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*Empty, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword); err != nil {
		return nil, s.toStatus(ctx, "ChangePassword", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) Profile(ctx context.Context, _ *Empty) (*ProfileResponse, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.accounts.Profile(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, "Profile", err)
	}
	return &ProfileResponse{Email: p.Email, Phone: p.Phone}, nil
}

func (s *GRPCServer) UpdatePhone(ctx context.Context, req *UpdatePhoneRequest) (*Empty, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdatePhone(ctx, id, req.Phone); err != nil {
		return nil, s.toStatus(ctx, "UpdatePhone", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) RequestElevation(ctx context.Context, _ *Empty) (*Empty, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequestElevation(ctx, id); err != nil {
		return nil, s.toStatus(ctx, "RequestElevation", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) Elevate(ctx context.Context, req *CodeRequest) (*ElevateResponse, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	grant, err := s.gate.Elevate(ctx, id, req.Code)
	if err != nil {
		return nil, s.toStatus(ctx, "Elevate", err)
	}
	return &ElevateResponse{ExpiresAt: grant.ExpiresAt}, nil
}

func (s *GRPCServer) RequestEmailChange(ctx context.Context, req *RequestEmailChangeRequest) (*Empty, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequestEmailChange(ctx, id, req.NewEmail); err != nil {
		return nil, s.toStatus(ctx, "RequestEmailChange", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ConfirmEmailChange(ctx context.Context, req *CodeRequest) (*Empty, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.ConfirmEmailChange(ctx, id, req.Code); err != nil {
		return nil, s.toStatus(ctx, "ConfirmEmailChange", err)
	}
	return &Empty{}, nil
}

func toEntryMetadata(m models.EntryMetadata) EntryMetadata {
	return EntryMetadata{
		ID:        m.ID,
		Title:     m.Title,
		Username:  m.Username,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (s *GRPCServer) CreateEntry(ctx context.Context, req *CreateEntryRequest) (*CreateEntryResponse, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	entryID, err := s.vault.Create(ctx, id, req.Title, req.Username, req.Secret)
	if err != nil {
		return nil, s.toStatus(ctx, "CreateEntry", err)
	}
	return &CreateEntryResponse{ID: entryID}, nil
}

func (s *GRPCServer) ListEntries(ctx context.Context, _ *Empty) (*ListEntriesResponse, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.vault.ListMetadata(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, "ListEntries", err)
	}
	resp := &ListEntriesResponse{Entries: make([]EntryMetadata, 0, len(list))}
	for _, m := range list {
		resp.Entries = append(resp.Entries, toEntryMetadata(m))
	}
	return resp, nil
}

func (s *GRPCServer) ReadSecret(ctx context.Context, req *EntryRequest) (*ReadSecretResponse, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.vault.ReadSecret(ctx, id, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, "ReadSecret", err)
	}
	return &ReadSecretResponse{
		Entry:             toEntryMetadata(res.Entry),
		Secret:            res.Secret,
		ElevationRequired: res.ElevationRequired,
	}, nil
}

func (s *GRPCServer) UpdateEntry(ctx context.Context, req *UpdateEntryRequest) (*Empty, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	patch := models.EntryPatch{Title: req.Title, Username: req.Username, Secret: req.Secret}
	if err := s.vault.Update(ctx, id, req.ID, patch); err != nil {
		return nil, s.toStatus(ctx, "UpdateEntry", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) DeleteEntry(ctx context.Context, req *EntryRequest) (*Empty, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.vault.Delete(ctx, id, req.ID); err != nil {
		return nil, s.toStatus(ctx, "DeleteEntry", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ExportEntries(ctx context.Context, _ *Empty) (*ExportEntriesResponse, error) {
	id, err := accountIDFrom(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.exporter.Export(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, "ExportEntries", err)
	}
	return &ExportEntriesResponse{Key: res.Key, URL: res.URL}, nil
}
