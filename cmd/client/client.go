package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"fenrir/internal/matching"
	"fenrir/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9443", "Address of the matching gateway")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel']")

	orderID := flag.Uint64("id", 0, "Order id (place: client-assigned; cancel: target order)")
	symbolID := flag.Uint("symbol", 1, "Symbol id")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'market', 'limit', 'stop', 'stop_limit', 'trailing_stop', 'trailing_stop_limit'")
	tifStr := flag.String("tif", "gtc", "Time in force: 'gtc', 'ioc', 'fok', 'aon'")
	price := flag.Uint64("price", 0, "Limit price (fixed-point)")
	stopPrice := flag.Uint64("stop", 0, "Stop trigger price (fixed-point); for trailing types, 0 derives it from the last traded price, or the opposite best price before any trade")
	trailDistance := flag.Uint64("trailing-distance", 0, "Trailing stop distance from the opposite best price (fixed-point)")
	trailStep := flag.Uint64("trailing-step", 0, "Minimum move before a trailing stop re-keys (fixed-point)")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")
	account := flag.Uint64("account", 1, "Account id")

	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", *serverAddr)

	go readReports(conn)

	side := matching.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = matching.Sell
	}
	orderType := parseOrderType(*typeStr)
	tif := parseTIF(*tifStr)

	switch strings.ToLower(*action) {
	case "place":
		for i, q := range parseQuantities(*qtyStr) {
			o := matching.Order{
				ID:               *orderID + uint64(i),
				SymbolID:         uint32(*symbolID),
				Side:             side,
				Type:             orderType,
				TimeInForce:      tif,
				Price:            matching.Price(*price),
				StopPrice:        matching.Price(*stopPrice),
				TrailingDistance: *trailDistance,
				TrailingStep:     *trailStep,
				Quantity:         matching.Quantity(q),
				AccountID:        *account,
			}
			if _, err := conn.Write(wire.EncodeNewOrder(o)); err != nil {
				log.Printf("failed to place order (qty %d): %v", q, err)
				continue
			}
			fmt.Printf("-> sent %s %s %d@%d\n", side, orderType, q, *price)
			time.Sleep(5 * time.Millisecond)
		}
	case "cancel":
		if *orderID == 0 {
			log.Fatal("-id is required for cancel")
		}
		if _, err := conn.Write(wire.EncodeCancelOrder(*orderID)); err != nil {
			log.Printf("failed to send cancel: %v", err)
		} else {
			fmt.Printf("-> sent cancel for order %d\n", *orderID)
		}
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (ctrl-c to exit)")
	select {}
}

func parseOrderType(s string) matching.OrderType {
	switch strings.ToLower(s) {
	case "market":
		return matching.Market
	case "stop":
		return matching.Stop
	case "stop_limit":
		return matching.StopLimit
	case "trailing_stop":
		return matching.TrailingStop
	case "trailing_stop_limit":
		return matching.TrailingStopLimit
	default:
		return matching.Limit
	}
}

func parseTIF(s string) matching.TimeInForce {
	switch strings.ToLower(s) {
	case "ioc":
		return matching.IOC
	case "fok":
		return matching.FOK
	case "aon":
		return matching.AON
	default:
		return matching.GTC
	}
}

func parseQuantities(input string) []uint64 {
	var out []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if v, err := strconv.ParseUint(p, 10, 64); err == nil {
			out = append(out, v)
		} else {
			log.Printf("warning: invalid quantity %q, skipping", p)
		}
	}
	return out
}

// readReports prints execution/error acknowledgements as they arrive.
func readReports(conn net.Conn) {
	for {
		header := make([]byte, 29)
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}
		code := matching.ErrorCode(header[0])
		orderID := binary.BigEndian.Uint64(header[1:9])
		price := binary.BigEndian.Uint64(header[9:17])
		qty := binary.BigEndian.Uint64(header[17:25])
		errLen := binary.BigEndian.Uint32(header[25:29])

		var errStr string
		if errLen > 0 {
			buf := make([]byte, errLen)
			if _, err := io.ReadFull(conn, buf); err != nil {
				log.Printf("error reading report body: %v", err)
				continue
			}
			errStr = string(buf)
		}

		if code.Ok() {
			fmt.Printf("\n[ack] order=%d price=%d qty=%d code=%s\n", orderID, price, qty, code)
		} else {
			fmt.Printf("\n[reject] order=%d code=%s %s\n", orderID, code, errStr)
		}
	}
}
