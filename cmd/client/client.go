package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gungnir/internal/engine"
	gungnirNet "gungnir/internal/net"
)

func main() {
	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'book']")

	// Order Parameters
	pairStr := flag.String("pair", "ETH/USDC", "Trading pair, order asset / price asset")
	sideStr := flag.String("side", "bid", "Order side: 'bid' or 'ask'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	price := flag.String("price", "100.00", "Limit price, decimal string")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	// Cancel Parameters
	orderID := flag.String("id", "", "Order id to cancel")

	flag.Parse()

	orderAsset, priceAsset, err := parsePair(*pairStr)
	if err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	// Connect to Server
	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	// Start Listening for Reports (Async)
	go readReports(conn)

	side := engine.Bid
	if strings.ToLower(*sideStr) == "ask" {
		side = engine.Ask
	}

	orderType := engine.LimitOrder
	if strings.ToLower(*typeStr) == "market" {
		orderType = engine.MarketOrder
	}

	// Execute Action
	switch strings.ToLower(*action) {
	case "place":
		for _, q := range parseQuantities(*qtyStr) {
			message := gungnirNet.NewOrderMessage{
				OrderType:  orderType,
				Side:       side,
				OrderAsset: orderAsset,
				PriceAsset: priceAsset,
				Quantity:   q,
				Price:      *price,
			}
			if _, err := conn.Write(message.Serialize()); err != nil {
				log.Printf("Failed to place order (Qty: %d): %v", q, err)
				continue
			}
			fmt.Printf("-> Sent %s %s Order: %s %d @ %s\n",
				strings.ToUpper(*typeStr), strings.ToUpper(*sideStr), *pairStr, q, *price)
			// Small sleep so the server sees a distinct arrival order.
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		id, err := uuid.Parse(*orderID)
		if err != nil {
			log.Fatalf("Error: -id must be a valid order id: %v", err)
		}
		message := gungnirNet.CancelOrderMessage{
			OrderAsset: orderAsset,
			PriceAsset: priceAsset,
			OrderID:    id,
		}
		if _, err := conn.Write(message.Serialize()); err != nil {
			log.Printf("Failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> Sent Cancel Request for %s\n", id)
		}

	case "book":
		if _, err := conn.Write(gungnirNet.BookStatusMessage()); err != nil {
			log.Printf("Failed to send book status request: %v", err)
		} else {
			fmt.Println("-> Sent Book Status Request")
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	// Keep the client alive to receive execution reports
	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parsePair(input string) (engine.Asset, engine.Asset, error) {
	legs := strings.Split(input, "/")
	if len(legs) != 2 || legs[0] == "" || legs[1] == "" {
		return "", "", fmt.Errorf("malformed pair %q, expected ORDER/PRICE", input)
	}
	return engine.Asset(legs[0]), engine.Asset(legs[1]), nil
}

// parseQuantities splits a comma-separated string into a slice of uint64
func parseQuantities(input string) []uint64 {
	var result []uint64
	for _, part := range strings.Split(input, ",") {
		q, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil || q == 0 {
			log.Printf("Skipping invalid quantity %q", part)
			continue
		}
		result = append(result, q)
	}
	return result
}

// readReports decodes report frames off the connection and prints them.
func readReports(conn net.Conn) {
	buffer := make([]byte, 4*1024)
	for {
		n, err := conn.Read(buffer)
		if err != nil {
			if err != io.EOF {
				log.Printf("Read error: %v", err)
			}
			fmt.Println("Server closed the connection.")
			os.Exit(0)
		}

		report, err := gungnirNet.ParseReport(buffer[:n])
		if err != nil {
			log.Printf("Failed to parse report: %v", err)
			continue
		}

		switch report.MessageType {
		case gungnirNet.ExecutionReport:
			fmt.Printf("<- EXECUTION %s %s %d @ %s [%s]\n",
				report.Side, report.Status, report.Quantity, report.Price, report.OrderID)
		case gungnirNet.OrderEventReport:
			fmt.Printf("<- EVENT %s @ %s [%s]\n",
				report.Status, report.Price, report.OrderID)
		case gungnirNet.ErrorReport:
			fmt.Printf("<- ERROR %s\n", report.Err)
		}
	}
}
