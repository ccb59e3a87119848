// Command kafkacli is a thin demonstration binary over the kafka package:
// kafkacli produce and kafkacli consume move newline-delimited records
// between a topic and stdin/stdout. It exists to exercise Client, Producer,
// Consumer and Admin end to end, not as a production cluster-admin tool.
//
// Modeled on cmd/kapacitor/main.go's shape: a flag.NewFlagSet per
// subcommand, a usage string, dispatch on os.Args[1].
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/kafka"
)

var usageStr = `
Usage: kafkacli [command] [args]

Commands:

	produce   Read newline-delimited values from stdin and send them to a topic.
	consume   Poll a topic as a consumer group member and print records to stdout.
	topics    Create, delete or describe topics.
	version   Print kafkacli's version.

Run 'kafkacli [command] -h' for a command's own flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageStr)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "produce":
		err = runProduce(os.Args[2:])
	case "consume":
		err = runConsume(os.Args[2:])
	case "topics":
		err = runTopics(os.Args[2:])
	case "version":
		fmt.Println("kafkacli (dev build)")
		return
	case "-h", "-help", "--help":
		fmt.Print(usageStr)
		return
	default:
		fmt.Fprintf(os.Stderr, "kafkacli: unknown command %q\n", os.Args[1])
		fmt.Fprint(os.Stderr, usageStr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "kafkacli: %v\n", err)
		os.Exit(1)
	}
}

// signalContext cancels when the process receives SIGINT/SIGTERM, so a long
// running consume loop stops cleanly instead of leaving the group hanging
// until SessionTimeoutMs expires.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
	}()
	return ctx, cancel
}

func newDiagnostic() diagnostic.Diagnostic {
	logger := diagnostic.NewServerLogger(os.Stderr, diagnostic.InfoLevel, diagnostic.Logfmt)
	return diagnostic.NewHandler(logger)
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

func dial(ctx context.Context, brokers string, clientID string) (*kafka.Client, error) {
	cfg := kafka.NewConfig()
	cfg.Brokers = splitBrokers(brokers)
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Diag = newDiagnostic()
	return kafka.Dial(ctx, cfg)
}

func runProduce(args []string) error {
	fs := flag.NewFlagSet("produce", flag.ExitOnError)
	brokers := fs.String("brokers", "localhost:9092", "comma-separated broker addresses")
	topic := fs.String("topic", "", "topic to produce to")
	key := fs.String("key", "", "record key applied to every line (optional)")
	clientID := fs.String("client-id", "", "client id sent with every request")
	timeout := fs.Duration("timeout", 30*time.Second, "overall timeout for the run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *topic == "" {
		return fmt.Errorf("produce: -topic is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := dial(ctx, *brokers, *clientID)
	if err != nil {
		return err
	}
	defer client.Close()

	producer, err := kafka.NewProducer(client, kafka.ProducerConfig{Acks: kafka.AcksLeader})
	if err != nil {
		return err
	}
	defer producer.Close()

	var keyVal interface{}
	if *key != "" {
		keyVal = []byte(*key)
	}

	scanner := bufio.NewScanner(os.Stdin)
	var sent int
	for scanner.Scan() {
		line := scanner.Bytes()
		msg := kafka.ProducerMessage{Topic: *topic, Key: keyVal, Value: append([]byte(nil), line...)}
		results, err := producer.Send(ctx, []kafka.ProducerMessage{msg})
		if err != nil {
			return fmt.Errorf("produce: %w", err)
		}
		for _, r := range results {
			fmt.Fprintf(os.Stdout, "%s/%d@%d\n", r.Topic, r.Partition, r.Offset)
		}
		sent++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("produce: reading stdin: %w", err)
	}
	fmt.Fprintf(os.Stderr, "produce: sent %d record(s)\n", sent)
	return nil
}

func runConsume(args []string) error {
	fs := flag.NewFlagSet("consume", flag.ExitOnError)
	brokers := fs.String("brokers", "localhost:9092", "comma-separated broker addresses")
	topic := fs.String("topic", "", "topic to consume from")
	group := fs.String("group", "", "consumer group id")
	clientID := fs.String("client-id", "", "client id sent with every request")
	fromBeginning := fs.Bool("from-beginning", false, "reset to the earliest offset instead of the latest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *topic == "" || *group == "" {
		return fmt.Errorf("consume: -topic and -group are required")
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := dial(ctx, *brokers, *clientID)
	if err != nil {
		return err
	}
	defer client.Close()

	reset := kafka.ResetLatest
	if *fromBeginning {
		reset = kafka.ResetEarliest
	}
	consumer, err := kafka.NewConsumer(client, kafka.ConsumerConfig{
		GroupID:     *group,
		Topics:      []string{*topic},
		AutoCommit:  true,
		ResetPolicy: reset,
	})
	if err != nil {
		return err
	}
	defer consumer.Close(context.Background())

	if err := consumer.Join(ctx); err != nil {
		return fmt.Errorf("consume: join: %w", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for ctx.Err() == nil {
		records, err := consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("consume: poll: %w", err)
		}
		for _, r := range records {
			value, _ := r.Value.([]byte)
			fmt.Fprintf(out, "%s/%d@%d\t%s\n", r.Topic, r.Partition, r.Offset, value)
		}
		out.Flush()
	}
	return nil
}

func runTopics(args []string) error {
	fs := flag.NewFlagSet("topics", flag.ExitOnError)
	brokers := fs.String("brokers", "localhost:9092", "comma-separated broker addresses")
	create := fs.String("create", "", "topic name to create")
	partitions := fs.Int("partitions", 1, "partition count for -create")
	replication := fs.Int("replication-factor", 1, "replication factor for -create")
	deleteTopic := fs.String("delete", "", "topic name to delete")
	describe := fs.Bool("describe-cluster", false, "print the cluster's broker list and controller id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *create == "" && *deleteTopic == "" && !*describe {
		return fmt.Errorf("topics: one of -create, -delete or -describe-cluster is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := dial(ctx, *brokers, "")
	if err != nil {
		return err
	}
	defer client.Close()

	admin := kafka.NewAdmin(client)

	if *create != "" {
		results, err := admin.CreateTopics(ctx, []kafka.TopicSpec{{
			Name:              *create,
			NumPartitions:     int32(*partitions),
			ReplicationFactor: int16(*replication),
		}}, 30000)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.ErrorCode != 0 {
				return fmt.Errorf("create %s: %s", r.Name, r.ErrorCode.Name())
			}
			fmt.Fprintf(os.Stdout, "created %s\n", r.Name)
		}
	}

	if *deleteTopic != "" {
		results, err := admin.DeleteTopics(ctx, []string{*deleteTopic}, 30000)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.ErrorCode != 0 {
				return fmt.Errorf("delete %s: %s", r.Name, r.ErrorCode.Name())
			}
			fmt.Fprintf(os.Stdout, "deleted %s\n", r.Name)
		}
	}

	if *describe {
		info, err := admin.DescribeCluster(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "controller: %d\n", info.ControllerID)
		for _, b := range info.Brokers {
			fmt.Fprintf(os.Stdout, "broker %d: %s\n", b.NodeID, b.Addr)
		}
	}

	return nil
}
