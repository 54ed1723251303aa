package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Package is a purchasable bundle of credits.
type Package struct {
	Credits    int    `json:"credits"`
	PriceInOG  string `json:"priceInOG"`
	PriceInWei string `json:"priceInWei"`
}

// Packages are the fixed purchase tiers.
var Packages = []Package{
	{Credits: 10, PriceInOG: "0.001", PriceInWei: "1000000000000000"},
	{Credits: 50, PriceInOG: "0.0045", PriceInWei: "4500000000000000"},
	{Credits: 100, PriceInOG: "0.008", PriceInWei: "8000000000000000"},
}

// ChainConfig describes the network payments settle on.
type ChainConfig struct {
	ChainID         int
	ChainName       string
	RPCURL          string
	BlockExplorer   string
	ContractAddress string
}

// DefaultChain is the 0G Galileo testnet.
var DefaultChain = ChainConfig{
	ChainID:         16602,
	ChainName:       "0G Galileo Testnet",
	RPCURL:          "https://evmrpc-testnet.0g.ai",
	BlockExplorer:   "https://chainscan-galileo.0g.ai",
	ContractAddress: "0x5FaADBd9203Bc599B71bb789BD59ca9127a87caC",
}

// Service serves the credit ledger HTTP API on top of a Store.
type Service struct {
	store  *Store
	chain  ChainConfig
	logger *zap.Logger
}

func NewService(store *Store, chain ChainConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, chain: chain, logger: logger}
}

type verifyPaymentReq struct {
	TelegramUserID  string `json:"telegramUserId"`
	TransactionHash string `json:"transactionHash"`
	CreditsAmount   int    `json:"creditsAmount"`
}

type consumeReq struct {
	TelegramUserID   string `json:"telegramUserId"`
	CreditsToConsume int    `json:"creditsToConsume"`
}

// Routes mounts the API under /api.
func (s *Service) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/credits/:telegramUserId", s.getCredits)
		api.POST("/consume-credits", s.consumeCredits)
		api.POST("/verify-payment", s.verifyPayment)
		api.GET("/health", s.health)
		api.GET("/payment-config", s.paymentConfig)
	}
	return r
}

func (s *Service) getCredits(c *gin.Context) {
	userID := c.Param("telegramUserId")
	credits, err := s.store.Balance(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("credits check failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to retrieve credits"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"userId": userID, "credits": credits},
	})
}

func (s *Service) consumeCredits(c *gin.Context) {
	var req consumeReq
	if err := c.ShouldBindJSON(&req); err != nil || req.TelegramUserID == "" || req.CreditsToConsume <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing required fields"})
		return
	}

	ctx := c.Request.Context()
	remaining, err := s.store.Debit(ctx, req.TelegramUserID, req.CreditsToConsume)
	if errors.Is(err, ErrInsufficientCredits) {
		current, _ := s.store.Balance(ctx, req.TelegramUserID)
		c.JSON(http.StatusPaymentRequired, gin.H{
			"success":        false,
			"error":          "Insufficient credits",
			"currentCredits": current,
		})
		return
	}
	if err != nil {
		s.logger.Error("credits consumption failed", zap.String("user_id", req.TelegramUserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to consume credits"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"creditsConsumed":  req.CreditsToConsume,
			"remainingCredits": remaining,
		},
	})
}

// verifyPayment credits a purchase. On-chain verification of the transaction
// is not performed; the hash is only used to reject replays.
func (s *Service) verifyPayment(c *gin.Context) {
	var req verifyPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil || req.TelegramUserID == "" || req.TransactionHash == "" || req.CreditsAmount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing required fields"})
		return
	}

	total, err := s.store.Credit(c.Request.Context(), req.TelegramUserID, req.TransactionHash, req.CreditsAmount)
	if errors.Is(err, ErrDuplicatePayment) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Payment already applied"})
		return
	}
	if err != nil {
		s.logger.Error("payment verification failed", zap.String("user_id", req.TelegramUserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Payment verification failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"creditsAdded":    req.CreditsAmount,
			"totalCredits":    total,
			"transactionHash": req.TransactionHash,
		},
	})
}

func (s *Service) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"network":         s.chain.ChainName,
		"contractAddress": s.chain.ContractAddress,
	})
}

func (s *Service) paymentConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"chainId":   s.chain.ChainID,
			"chainName": s.chain.ChainName,
			"nativeCurrency": gin.H{
				"name":     "0G",
				"symbol":   "0G",
				"decimals": 18,
			},
			"rpcUrl":          s.chain.RPCURL,
			"blockExplorer":   s.chain.BlockExplorer,
			"contractAddress": s.chain.ContractAddress,
			"creditPackages":  Packages,
		},
	})
}
