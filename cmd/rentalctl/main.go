// rentalctl books and inspects rentals against a local ledger directory,
// without running the HTTP service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	bookingrepo "carrental/internal/bookings/repository"
	bookingservice "carrental/internal/bookings/service"
	"carrental/internal/bookings/validator"
	catalogrepo "carrental/internal/catalog/repository"
	catalogservice "carrental/internal/catalog/service"
	"carrental/pkg/kvstore"
	"carrental/pkg/logger"
	"carrental/pkg/model"
)

const usage = `rentalctl manages car rental bookings stored in a local directory.

Usage:
  rentalctl [global flags] <command> [flags] [args]

Commands:
  cars                 list cars (--brand, --type, --min-price, --max-price, --sort)
  quote <car-id>       price a rental (--pickup, --return)
  book <car-id>        create a booking (--pickup, --return, --from, --to, --price)
  list                 list the user's bookings
  cancel <booking-id>  cancel a booking

Dates are RFC 3339 timestamps or YYYY-MM-DD.

Global flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	ctx      context.Context
	out      io.Writer
	user     string
	asJSON   bool
	catalog  catalogservice.CatalogService
	bookings bookingservice.BookingService
}

func run(args []string, stdout, stderr io.Writer) error {
	var storeDir, catalogPath, user string
	var asJSON, verbose bool

	flagSet := pflag.NewFlagSet("rentalctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&storeDir, "store-dir", "./data", "directory holding the booking ledger")
	flagSet.StringVar(&catalogPath, "catalog", "", "catalog file (default: built-in fleet)")
	flagSet.StringVarP(&user, "user", "u", os.Getenv("RENTALCTL_USER"), "user id to act as")
	flagSet.BoolVar(&asJSON, "json", false, "output as JSON")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	flagSet.Usage = func() {
		fmt.Fprint(stderr, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}

	log := logger.Discard()
	if verbose {
		log = logger.New(logger.Config{Level: logger.DEBUG, Format: logger.TEXT, Output: stderr, Service: "rentalctl"})
	}

	catalog, err := catalogrepo.Load(catalogPath)
	if err != nil {
		return err
	}

	e := &env{
		ctx:     context.Background(),
		out:     stdout,
		user:    strings.TrimSpace(user),
		asJSON:  asJSON,
		catalog: catalogservice.NewCatalogService(catalog, log),
	}

	command, cmdArgs := rest[0], rest[1:]
	switch command {
	case "cars":
		return e.cars(cmdArgs)
	case "quote":
		return e.quote(cmdArgs)
	}

	store, err := kvstore.NewFile(storeDir)
	if err != nil {
		return err
	}
	defer store.Close()

	e.bookings = bookingservice.NewBookingService(
		bookingrepo.NewLedgerRepository(store, bookingrepo.DefaultLedgerKey, log),
		e.catalog,
		validator.NewBookingValidator(log),
		log,
	)
	e.bookings.Load(e.ctx)

	switch command {
	case "book":
		return e.book(cmdArgs)
	case "list":
		return e.list(cmdArgs)
	case "cancel":
		return e.cancel(cmdArgs)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (e *env) cars(args []string) error {
	var brand, carType, sortBy string
	var minPrice, maxPrice float64

	flagSet := pflag.NewFlagSet("cars", pflag.ContinueOnError)
	flagSet.StringVar(&brand, "brand", "", "only this brand")
	flagSet.StringVar(&carType, "type", "", "only this body type")
	flagSet.Float64Var(&minPrice, "min-price", -1, "minimum price per day")
	flagSet.Float64Var(&maxPrice, "max-price", -1, "maximum price per day")
	flagSet.StringVar(&sortBy, "sort", "", "price_asc, price_desc or newest")
	if err := parseNoArgs(flagSet, args); err != nil {
		return err
	}

	var spec model.FilterSpec
	if brand != "" {
		spec.Brand = &brand
	}
	if carType != "" {
		spec.Type = &carType
	}
	if minPrice >= 0 || maxPrice >= 0 {
		r := model.PriceRange{Min: 0, Max: maxPrice}
		if minPrice >= 0 {
			r.Min = minPrice
		}
		if maxPrice < 0 {
			r.Max = math.MaxFloat64
		}
		if r.Min > r.Max {
			return fmt.Errorf("--min-price %.2f exceeds --max-price %.2f", r.Min, r.Max)
		}
		spec.PriceRange = &r
	}
	if sortBy != "" {
		order := model.SortOrder(sortBy)
		if !order.Valid() {
			return fmt.Errorf("invalid --sort %q", sortBy)
		}
		spec.SortBy = &order
	}

	cars := e.catalog.Search(spec)
	if e.asJSON {
		return writeJSON(e.out, cars)
	}

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tYEAR\tSEATS\tPRICE/DAY")
	for _, c := range cars {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.2f\n", c.ID, c.Name, c.Type, c.Year, c.Seats, c.PricePerDay)
	}
	return tw.Flush()
}

func (e *env) quote(args []string) error {
	flagSet := pflag.NewFlagSet("quote", pflag.ContinueOnError)
	pickup, ret := dateFlags(flagSet)
	carID, err := parseOneArg(flagSet, args, "car-id")
	if err != nil {
		return err
	}

	pickupDate, returnDate, err := parseRange(*pickup, *ret)
	if err != nil {
		return err
	}

	q, err := e.catalog.Quote(carID, pickupDate, returnDate)
	if err != nil {
		return err
	}
	if e.asJSON {
		return writeJSON(e.out, q)
	}
	fmt.Fprintf(e.out, "%d day(s) x %.2f = %.2f\n", q.Days, q.PricePerDay, q.Total)
	return nil
}

func (e *env) book(args []string) error {
	if err := e.requireUser(); err != nil {
		return err
	}

	var from, to string
	var price float64
	flagSet := pflag.NewFlagSet("book", pflag.ContinueOnError)
	pickup, ret := dateFlags(flagSet)
	flagSet.StringVar(&from, "from", "", "pickup location")
	flagSet.StringVar(&to, "to", "", "dropoff location (default: same as --from)")
	flagSet.Float64Var(&price, "price", 0, "quoted total to confirm")
	carID, err := parseOneArg(flagSet, args, "car-id")
	if err != nil {
		return err
	}
	if to == "" {
		to = from
	}

	pickupDate, returnDate, err := parseRange(*pickup, *ret)
	if err != nil {
		return err
	}

	req := &model.BookingRequest{
		UserID:          e.user,
		CarID:           carID,
		PickupLocation:  from,
		DropoffLocation: to,
		PickupDate:      pickupDate,
		ReturnDate:      returnDate,
	}
	if flagSet.Changed("price") {
		req.TotalPrice = &price
	}

	booking, err := e.bookings.Create(e.ctx, req)
	if err != nil {
		return err
	}
	if e.asJSON {
		return writeJSON(e.out, booking)
	}
	fmt.Fprintf(e.out, "booked %s: %s, %s to %s, total %.2f\n",
		booking.ID, booking.CarID,
		booking.PickupDate.Format(time.RFC3339), booking.ReturnDate.Format(time.RFC3339),
		booking.TotalPrice)
	return nil
}

func (e *env) list(args []string) error {
	if err := e.requireUser(); err != nil {
		return err
	}
	if err := parseNoArgs(pflag.NewFlagSet("list", pflag.ContinueOnError), args); err != nil {
		return err
	}

	bookings := e.bookings.GetBookingsForUser(e.ctx, e.user)
	if e.asJSON {
		return writeJSON(e.out, bookings)
	}
	if len(bookings) == 0 {
		fmt.Fprintln(e.out, "no bookings")
		return nil
	}

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCAR\tPICKUP\tRETURN\tTOTAL\tSTATUS")
	for _, b := range bookings {
		car := b.CarID
		if c, ok := e.catalog.GetCar(b.CarID); ok && c.Name != "" {
			car = c.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n", b.ID, car,
			b.PickupDate.Format(time.RFC3339), b.ReturnDate.Format(time.RFC3339), b.TotalPrice, b.Status)
	}
	return tw.Flush()
}

func (e *env) cancel(args []string) error {
	if err := e.requireUser(); err != nil {
		return err
	}
	id, err := parseOneArg(pflag.NewFlagSet("cancel", pflag.ContinueOnError), args, "booking-id")
	if err != nil {
		return err
	}

	booking, ok := e.bookings.Get(e.ctx, id)
	if !ok || booking.UserID != e.user {
		return fmt.Errorf("booking %s not found", id)
	}
	if _, err := e.bookings.Cancel(e.ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "cancelled %s\n", id)
	return nil
}

func (e *env) requireUser() error {
	if e.user == "" {
		return errors.New("--user (or RENTALCTL_USER) is required")
	}
	return nil
}

func dateFlags(flagSet *pflag.FlagSet) (pickup, ret *string) {
	pickup = flagSet.String("pickup", "", "pickup date")
	ret = flagSet.String("return", "", "return date")
	return pickup, ret
}

func parseNoArgs(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return nil
}

func parseOneArg(flagSet *pflag.FlagSet, args []string, name string) (string, error) {
	if err := flagSet.Parse(args); err != nil {
		return "", err
	}
	if flagSet.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one <%s> argument", name)
	}
	return flagSet.Arg(0), nil
}

func parseRange(pickup, ret string) (time.Time, time.Time, error) {
	pickupDate, err := parseDate("pickup", pickup)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	returnDate, err := parseDate("return", ret)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return pickupDate, returnDate, nil
}

func parseDate(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want RFC 3339 or YYYY-MM-DD", name, raw)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
