package store

import (
	"context"
	"net/netip"

	"gorm.io/gorm"

	"github.com/wirewarden/wirewarden/pkg/model"
)

// AddServerRoute advertises a CIDR behind the server. Clients peering with
// the server pick it up in their AllowedIPs on the next render.
func (s *Store) AddServerRoute(ctx context.Context, serverID uint, route netip.Prefix) (*model.ServerRoute, error) {
	if err := model.ValidateRouteCIDR(route); err != nil {
		return nil, validationErr(err)
	}

	var created model.ServerRoute
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var server model.Server
		if err := tx.First(&server, serverID).Error; err != nil {
			return notFound(err)
		}

		created = model.ServerRoute{ServerID: serverID, CIDR: model.Prefix(route)}
		return tx.Create(&created).Error
	})
	if isUniqueViolation(err, "wg_server_routes") {
		return nil, ErrDuplicateRoute
	}
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (s *Store) RemoveServerRoute(ctx context.Context, serverID uint, route netip.Prefix) error {
	res := s.db.WithContext(ctx).Unscoped().
		Where("server_id = ? AND cidr = ?", serverID, model.Prefix(route)).
		Delete(&model.ServerRoute{})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *Store) ListServerRoutes(ctx context.Context, serverID uint) ([]model.ServerRoute, error) {
	var routes []model.ServerRoute
	if err := s.db.WithContext(ctx).Where("server_id = ?", serverID).Order("id").Find(&routes).Error; err != nil {
		return nil, err
	}

	return routes, nil
}

func (s *Store) serverRoutePrefixes(ctx context.Context, serverID uint) ([]netip.Prefix, error) {
	routes, err := s.ListServerRoutes(ctx, serverID)
	if err != nil {
		return nil, err
	}

	prefixes := make([]netip.Prefix, len(routes))
	for i, route := range routes {
		prefixes[i] = route.CIDR.ToNetip()
	}

	return prefixes, nil
}
