package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads an optional .env file before the per-service config is
// assembled from the environment. A missing file is fine; containers set
// their environment directly.
func Load(logger *logrus.Logger) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

type OrderService struct {
	Port              string
	DB                Database
	KafkaBrokers      string
	UserServiceURL    string
	CartServiceURL    string
	ProductServiceURL string
	PaymentServiceURL string
}

func LoadOrderService() OrderService {
	return OrderService{
		Port: getEnv("ORDER_SERVICE_PORT", "8081"),
		DB: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "orderservice"),
			Password: getEnv("DB_PASSWORD", "orderservice"),
			Name:     getEnv("DB_NAME", "orders"),
		},
		KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		UserServiceURL:    getEnv("USER_SERVICE_URL", "http://localhost:8085"),
		CartServiceURL:    getEnv("CART_SERVICE_URL", "http://localhost:8085"),
		ProductServiceURL: getEnv("PRODUCT_SERVICE_URL", "http://localhost:8085"),
		PaymentServiceURL: getEnv("PAYMENT_SERVICE_URL", "http://localhost:8082"),
	}
}

type PaymentService struct {
	Port              string
	DB                Database
	KafkaBrokers      string
	OrderServiceURL   string
	PaypalCheckoutURL string
	VnpayCheckoutURL  string
	VnpayTerminalCode string
}

func LoadPaymentService() PaymentService {
	return PaymentService{
		Port: getEnv("PAYMENT_SERVICE_PORT", "8082"),
		DB: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "paymentservice"),
			Password: getEnv("DB_PASSWORD", "paymentservice"),
			Name:     getEnv("DB_NAME", "payments"),
		},
		KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		OrderServiceURL:   getEnv("ORDER_SERVICE_URL", "http://localhost:8081"),
		PaypalCheckoutURL: getEnv("PAYPAL_CHECKOUT_URL", "https://www.sandbox.paypal.com/checkoutnow"),
		VnpayCheckoutURL:  getEnv("VNPAY_CHECKOUT_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		VnpayTerminalCode: getEnv("VNPAY_TERMINAL_CODE", "DEMOV210"),
	}
}

type SMTP struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

type NotificationService struct {
	Port         string
	KafkaBrokers string
	SMTP         SMTP
}

func LoadNotificationService() NotificationService {
	return NotificationService{
		Port:         getEnv("NOTIFICATION_SERVICE_PORT", "8083"),
		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
		SMTP: SMTP{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnv("SMTP_PORT", "1025"),
			From:     getEnv("SMTP_FROM", "no-reply@fulfillment.local"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
