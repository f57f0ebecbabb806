// Command generate writes the demo study datasets the CLI usage examples
// run against: ADSL (subject level), ADAE (adverse events) and ADLB (labs).
// Event and lab dates are generated relative to the current day so the
// relative date range examples stay meaningful.
package main

import (
	"log"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
)

type SubjectRow struct {
	USUBJID string   `parquet:"USUBJID"`
	SITEID  string   `parquet:"SITEID"`
	AGE     int64    `parquet:"AGE"`
	SEX     string   `parquet:"SEX"`
	ARM     string   `parquet:"ARM"`
	BMI     *float64 `parquet:"BMI,optional"`
	RFSTDTC string   `parquet:"RFSTDTC"`
}

type EventRow struct {
	USUBJID string `parquet:"USUBJID"`
	SITEID  string `parquet:"SITEID"`
	AETERM  string `parquet:"AETERM"`
	AESEV   string `parquet:"AESEV"`
	AESER   string `parquet:"AESER"`
	AESTDTC string `parquet:"AESTDTC"`
}

type LabRow struct {
	USUBJID string   `parquet:"USUBJID"`
	LBTEST  string   `parquet:"LBTEST"`
	LBORRES *float64 `parquet:"LBORRES,optional"`
	LBDT    string   `parquet:"LBDT"`
	VISIT   string   `parquet:"VISIT"`
}

func main() {
	now := time.Now()
	daysAgo := func(n int) string { return now.AddDate(0, 0, -n).Format("2006-01-02") }
	f := func(v float64) *float64 { return &v }

	subjects := []SubjectRow{
		{USUBJID: "CDISCPILOT01-1001", SITEID: "S01", AGE: 71, SEX: "F", ARM: "Xanomeline High Dose", BMI: f(24.7), RFSTDTC: "2024-01-15"},
		{USUBJID: "CDISCPILOT01-1002", SITEID: "S01", AGE: 58, SEX: "M", ARM: "Placebo", BMI: f(28.1), RFSTDTC: "2024-01-22"},
		{USUBJID: "CDISCPILOT01-1003", SITEID: "S02", AGE: 67, SEX: "F", ARM: "Xanomeline Low Dose", BMI: nil, RFSTDTC: "2024-02-03"},
		{USUBJID: "CDISCPILOT01-1004", SITEID: "S02", AGE: 45, SEX: "M", ARM: "Placebo", BMI: f(22.9), RFSTDTC: "2024-02-10"},
		{USUBJID: "CDISCPILOT01-1005", SITEID: "S03", AGE: 79, SEX: "F", ARM: "Xanomeline High Dose", BMI: f(26.4), RFSTDTC: "2024-02-17"},
		{USUBJID: "CDISCPILOT01-1006", SITEID: "S03", AGE: 62, SEX: "M", ARM: "Xanomeline Low Dose", BMI: f(31.0), RFSTDTC: "2024-03-01"},
		{USUBJID: "CDISCPILOT01-1007", SITEID: "S01", AGE: 55, SEX: "F", ARM: "Placebo", BMI: f(25.2), RFSTDTC: "2024-03-08"},
		{USUBJID: "CDISCPILOT01-1008", SITEID: "S02", AGE: 83, SEX: "M", ARM: "Xanomeline High Dose", BMI: f(23.6), RFSTDTC: "2024-03-15"},
	}

	events := []EventRow{
		{USUBJID: "CDISCPILOT01-1001", SITEID: "S01", AETERM: "HEADACHE", AESEV: "MILD", AESER: "N", AESTDTC: daysAgo(45)},
		{USUBJID: "CDISCPILOT01-1001", SITEID: "S01", AETERM: "NAUSEA", AESEV: "MODERATE", AESER: "N", AESTDTC: daysAgo(12)},
		{USUBJID: "CDISCPILOT01-1003", SITEID: "S02", AETERM: "DIZZINESS", AESEV: "SEVERE", AESER: "Y", AESTDTC: daysAgo(20)},
		{USUBJID: "CDISCPILOT01-1005", SITEID: "S03", AETERM: "RASH", AESEV: "MILD", AESER: "N", AESTDTC: daysAgo(90)},
		{USUBJID: "CDISCPILOT01-1005", SITEID: "S03", AETERM: "SYNCOPE", AESEV: "SEVERE", AESER: "Y", AESTDTC: daysAgo(5)},
		{USUBJID: "CDISCPILOT01-1006", SITEID: "S03", AETERM: "FATIGUE", AESEV: "MODERATE", AESER: "N", AESTDTC: daysAgo(30)},
		{USUBJID: "CDISCPILOT01-1008", SITEID: "S02", AETERM: "APPLICATION SITE PRURITUS", AESEV: "MILD", AESER: "N", AESTDTC: daysAgo(2)},
	}

	labs := []LabRow{
		{USUBJID: "CDISCPILOT01-1001", LBTEST: "ALT", LBORRES: f(34), LBDT: daysAgo(60), VISIT: "WEEK 4"},
		{USUBJID: "CDISCPILOT01-1001", LBTEST: "ALT", LBORRES: f(41), LBDT: daysAgo(7), VISIT: "WEEK 12"},
		{USUBJID: "CDISCPILOT01-1002", LBTEST: "ALT", LBORRES: f(28), LBDT: daysAgo(58), VISIT: "WEEK 4"},
		{USUBJID: "CDISCPILOT01-1002", LBTEST: "AST", LBORRES: f(22), LBDT: daysAgo(58), VISIT: "WEEK 4"},
		{USUBJID: "CDISCPILOT01-1003", LBTEST: "ALT", LBORRES: f(67), LBDT: daysAgo(15), VISIT: "WEEK 8"},
		{USUBJID: "CDISCPILOT01-1004", LBTEST: "AST", LBORRES: nil, LBDT: daysAgo(40), VISIT: "WEEK 4"},
		{USUBJID: "CDISCPILOT01-1005", LBTEST: "ALT", LBORRES: f(52), LBDT: daysAgo(3), VISIT: "WEEK 12"},
		{USUBJID: "CDISCPILOT01-1006", LBTEST: "AST", LBORRES: f(31), LBDT: daysAgo(25), VISIT: "WEEK 8"},
		{USUBJID: "CDISCPILOT01-1008", LBTEST: "ALT", LBORRES: f(45), LBDT: daysAgo(1), VISIT: "WEEK 12"},
	}

	writeParquet("ADSL.parquet", subjects)
	writeParquet("ADAE.parquet", events)
	writeParquet("ADLB.parquet", labs)
}

func writeParquet[T any](path string, rows []T) {
	file, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		log.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Generated %s with %d rows", path, len(rows))
}
