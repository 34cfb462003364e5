package main

import (
	"context"
	"fmt"

	model "auction-house/internal/models"
	"auction-house/internal/repository"
	"auction-house/internal/repository/postgres"
	"auction-house/utils"

	"github.com/shopspring/decimal"
)

// demo users and products so a fresh server has something to auction
func demoUsers() []model.User {
	return []model.User{
		{UserID: "user1", Name: "Alice", Email: "alice@example.com"},
		{UserID: "user2", Name: "Bob", Email: "bob@example.com"},
		{UserID: "user3", Name: "Carol", Email: "carol@example.com"},
	}
}

func demoProducts() []model.Product {
	return []model.Product{
		{ProductID: "item1", Title: "title1", Description: "description1", StartingPrice: decimal.NewFromInt(100), OwnerID: "user1"},
		{ProductID: "item2", Title: "title2", Description: "Description2", StartingPrice: decimal.NewFromInt(200), OwnerID: "user1"},
		{ProductID: "item3", Title: "title3", Description: "Description3", StartingPrice: decimal.NewFromInt(150), OwnerID: "user2"},
	}
}

// seedMemory adds the demo users and products to the in-memory repo
func seedMemory(repo *repository.MemoryRepo) {
	for _, u := range demoUsers() {
		repo.AddUser(u)
	}
	for _, p := range demoProducts() {
		repo.AddProduct(p)
	}
	utils.Info("seeded demo catalog", map[string]any{"driver": "memory", "products": len(demoProducts())})
}

// seedPostgres inserts the demo users and products, skipping rows that already exist
func seedPostgres(ctx context.Context, store *postgres.Store) error {
	for _, u := range demoUsers() {
		if err := store.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	for _, p := range demoProducts() {
		if err := store.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	utils.Info("seeded demo catalog", map[string]any{"driver": "postgres", "products": len(demoProducts())})
	return nil
}
